package models

import "errors"

// Стандартные ошибки ядра. Возвращаются явно как значения (никаких
// паник через границы пакетов); HTTP-слой сам решает, как их отдавать клиенту.
var (
	// Общие ошибки ресурсов
	ErrNotFound      = errors.New("resource not found")
	ErrStoryNotFound = errors.New("story not found")

	// Ошибки обхода графа
	ErrNodeNotFound  = errors.New("story node not found in graph")
	ErrInvalidChoice = errors.New("choice is not available in the current state")
	ErrNoSkillCheck  = errors.New("node has no skill check to resolve")

	// Ошибки синтеза озвучки
	ErrEmptyText           = errors.New("narration text is empty")
	ErrProviderUnavailable = errors.New("speech synthesis provider is not configured")

	// Общие ошибки запросов
	ErrInvalidInput = errors.New("invalid input data")
)
