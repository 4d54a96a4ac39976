package assets

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// CloudinaryConfig содержит учетные данные Cloudinary.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

// CloudinaryStore загружает аудио в Cloudinary подписанным upload-запросом.
// mp3 в Cloudinary живет под resource_type=video, отсюда /video/upload.
type CloudinaryStore struct {
	cfg        CloudinaryConfig
	httpClient *http.Client
	logger     *zap.Logger
	// для тестов
	now func() time.Time
}

var _ Store = (*CloudinaryStore)(nil)

func NewCloudinaryStore(cfg CloudinaryConfig, logger *zap.Logger) *CloudinaryStore {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &CloudinaryStore{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("cloudinary"),
		now:        time.Now,
	}
}

type cloudinaryUploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Bytes     int    `json:"bytes"`
	Error     struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Store выполняет подписанную загрузку. pathHint разбивается на папку и
// public_id: "tts/slug/audio/node_x_abcd1234" -> folder="tts/slug/audio",
// public_id="node_x_abcd1234".
func (s *CloudinaryStore) Store(ctx context.Context, data []byte, pathHint string) (string, error) {
	if s.cfg.CloudName == "" || s.cfg.APIKey == "" || s.cfg.APISecret == "" {
		return "", fmt.Errorf("cloudinary: credentials are not configured")
	}

	folder := path.Dir(pathHint)
	publicID := path.Base(pathHint)
	timestamp := strconv.FormatInt(s.now().Unix(), 10)

	// Подпись: параметры в алфавитном порядке + api_secret, SHA-1.
	toSign := fmt.Sprintf("folder=%s&public_id=%s&timestamp=%s%s", folder, publicID, timestamp, s.cfg.APISecret)
	digest := sha1.Sum([]byte(toSign))
	signature := hex.EncodeToString(digest[:])

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fields := map[string]string{
		"api_key":   s.cfg.APIKey,
		"timestamp": timestamp,
		"signature": signature,
		"folder":    folder,
		"public_id": publicID,
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return "", fmt.Errorf("cloudinary: failed to write form field %s: %w", k, err)
		}
	}
	part, err := w.CreateFormFile("file", publicID+".mp3")
	if err != nil {
		return "", fmt.Errorf("cloudinary: failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("cloudinary: failed to write audio payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("cloudinary: failed to finalize multipart body: %w", err)
	}

	url := fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/video/upload", s.cfg.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("cloudinary: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("cloudinary: upload request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("cloudinary: failed to read response: %w", err)
	}

	var parsed cloudinaryUploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("cloudinary: failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || parsed.SecureURL == "" {
		msg := parsed.Error.Message
		if msg == "" {
			msg = string(raw)
		}
		return "", fmt.Errorf("cloudinary: upload rejected (status %d): %s", resp.StatusCode, msg)
	}

	s.logger.Debug("Ассет загружен в Cloudinary",
		zap.String("public_id", parsed.PublicID),
		zap.Int("bytes", parsed.Bytes))

	return parsed.SecureURL, nil
}
