package models

// SessionState — эфемерное состояние читателя в одной истории.
// Ядро нигде его не хранит: каждый запрос приносит снапшот и получает
// новый, персистентность — забота вызывающего слоя (клиент пересылает
// состояние сам). Благодаря этому обход полностью stateless и может
// масштабироваться горизонтально без общего хранилища сессий.
type SessionState struct {
	CurrentNodeKey string          `json:"current_node_key"`
	Flags          map[string]bool `json:"flags"`
	Stats          map[string]int  `json:"stats"`
}

// NewSessionState создает состояние для первого захода в историю.
func NewSessionState(startNodeKey string, initialStats map[string]int) SessionState {
	stats := make(map[string]int, len(initialStats))
	for k, v := range initialStats {
		stats[k] = v
	}
	return SessionState{
		CurrentNodeKey: startNodeKey,
		Flags:          make(map[string]bool),
		Stats:          stats,
	}
}

// Clone возвращает глубокую копию состояния. Все мутации (эффекты выбора,
// штраф за проваленную проверку) идут через копию — исходный снапшот
// никогда не меняется на месте, даже при конкурентном втором запросе.
func (s SessionState) Clone() SessionState {
	flags := make(map[string]bool, len(s.Flags))
	for k, v := range s.Flags {
		flags[k] = v
	}
	stats := make(map[string]int, len(s.Stats))
	for k, v := range s.Stats {
		stats[k] = v
	}
	return SessionState{
		CurrentNodeKey: s.CurrentNodeKey,
		Flags:          flags,
		Stats:          stats,
	}
}
