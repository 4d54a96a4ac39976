package narration

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashText вычисляет детерминированный отпечаток текста озвучки: SHA-256
// поверх точной последовательности байтов, hex-строкой. Используется
// исключительно как детектор изменений для инвалидации кеша, не как
// криптографический примитив: любое байтовое отличие текста (включая
// пробелы) дает другой отпечаток.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ShortHash — первые 8 символов отпечатка, для читаемых идентификаторов
// ассетов (node_<key>_<hash8>).
func ShortHash(hash string) string {
	if len(hash) <= 8 {
		return hash
	}
	return hash[:8]
}
