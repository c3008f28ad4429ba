package models

import (
	"gorm.io/gorm"
)

// Template 表示可重複使用的題組範本
type Template struct {
	gorm.Model
	Name      string             `json:"name"`
	Questions []TemplateQuestion `json:"questions" gorm:"serializer:json"`
}

// TemplateQuestion 表示範本中的單一題目規格
type TemplateQuestion struct {
	Question      string       `json:"question"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	Timer         int          `json:"timer"`
	IsAnonymous   bool         `json:"isAnonymous"`
}
