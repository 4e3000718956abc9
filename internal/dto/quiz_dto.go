package dto

type GenerateQuizRequest struct {
	Topic          string `json:"topic" validate:"required,max=200"`
	Difficulty     string `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	QuestionCount  int    `json:"questionCount" validate:"omitempty,min=1,max=30"`
	SourceText     string `json:"sourceText" validate:"max=60000"`
	IdempotencyKey string `json:"idempotencyKey" validate:"max=128"`
}

type GenerateQuizResponse struct {
	ResultId string `json:"resultId"`
	Status   string `json:"status"`
	Replayed bool   `json:"replayed,omitempty"`
}

type QuizQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answerIndex"`
	Explanation string   `json:"explanation,omitempty"`
}

// QuizJobMessage is the payload published on the quiz job topic.
type QuizJobMessage struct {
	ResultId      string `json:"resultId"`
	RecordId      string `json:"recordId"`
	UserId        string `json:"userId"`
	Topic         string `json:"topic"`
	Difficulty    string `json:"difficulty"`
	QuestionCount int    `json:"questionCount"`
	SourceText    string `json:"sourceText,omitempty"`
}
