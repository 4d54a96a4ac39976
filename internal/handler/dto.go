package handler

import (
	"gamebook-server/internal/engine"
	"gamebook-server/internal/models"
)

// APIError представляет стандартизированный ответ об ошибке.
type APIError struct {
	Message string `json:"message"`
}

// startSessionResponse — ответ на создание сессии.
type startSessionResponse struct {
	Session models.SessionState `json:"session"`
	View    *models.NodeView    `json:"view"`
}

// viewRequest — запрос вида текущего узла. Сессия целиком живет на клиенте
// и присылается с каждым запросом.
type viewRequest struct {
	Session models.SessionState `json:"session"`
}

// advanceRequest — запрос одного перехода.
type advanceRequest struct {
	Session models.SessionState `json:"session"`
	Action  engine.Action       `json:"action"`
}

// pregenerateRequest — запрос фоновой прегенерации озвучки узла.
type pregenerateRequest struct {
	StorySlug string                 `json:"story_slug"`
	NodeKey   string                 `json:"node_key"`
	Kinds     []models.NarrationKind `json:"kinds,omitempty"`
}

type pregenerateResponse struct {
	TaskID string `json:"task_id"`
}
