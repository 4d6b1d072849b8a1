package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"signquiz-service/internal/domain"
)

const bankYAML = `
questions:
  - id: hello
    media: signs/hello.mp4
    coinReward: 15
    difficulty: easy
    answers:
      - text: Hello
        isCorrect: true
      - text: Goodbye
  - id: water
    media: signs/water.mp4
    coinReward: 25
    answers:
      - text: Milk
      - text: Water
        isCorrect: true
scenarios:
  cafe:
    - water
    - hello
`

func TestReadBankFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.yaml")
	if err := os.WriteFile(path, []byte(bankYAML), 0o600); err != nil {
		t.Fatalf("write bank: %v", err)
	}

	bank, err := ReadBankFile(path)
	if err != nil {
		t.Fatalf("read bank: %v", err)
	}
	if len(bank.Questions) != 2 || bank.Questions[0].CoinReward != 15 || bank.Questions[0].Difficulty != "easy" {
		t.Fatalf("unexpected questions: %+v", bank.Questions)
	}

	loader := NewStaticQuestionLoader(bank)
	cafe, err := loader.LoadScenario(context.Background(), "cafe")
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if len(cafe) != 2 || cafe[0].ID != "water" || cafe[1].ID != "hello" {
		t.Fatalf("scenario out of order: %+v", cafe)
	}
}

func TestBankValidateRejectsUnknownScenarioQuestion(t *testing.T) {
	bank := sampleBank()
	bank.Scenarios["cafe"] = append(bank.Scenarios["cafe"], "croissant")
	if err := bank.Validate(); !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected invalid question, got %v", err)
	}
}

func TestBankValidateRejectsTwoCorrectAnswers(t *testing.T) {
	bank := sampleBank()
	bank.Questions[0].Answers[0].IsCorrect = true
	if err := bank.Validate(); !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected invalid question, got %v", err)
	}
}
