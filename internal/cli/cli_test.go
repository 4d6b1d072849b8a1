package cli

import (
	"testing"

	"signquiz-service/internal/config"
	"signquiz-service/internal/infra/memory"
)

func TestSampleBankIsPlayable(t *testing.T) {
	bank := sampleBank()
	if err := bank.Validate(); err != nil {
		t.Fatalf("sample bank invalid: %v", err)
	}
	if len(bank.Scenarios["cafe"]) == 0 {
		t.Fatalf("expected a cafe scenario")
	}
}

func TestShippedQuestionBankParses(t *testing.T) {
	bank, err := memory.ReadBankFile("../../config/questions.yaml")
	if err != nil {
		t.Fatalf("read bank: %v", err)
	}
	scenarios := scenariosOf(bank)
	if len(scenarios) != 1 || scenarios[0].Name != "cafe" || len(scenarios[0].QuestionIDs) != 4 {
		t.Fatalf("unexpected scenarios: %+v", scenarios)
	}
}

func TestQuestionLoaderFallsBackToBankFile(t *testing.T) {
	var cfg config.Config
	cfg.Questions.BankFile = "../../config/questions.yaml"
	loader, err := questionLoader(cfg, nil)
	if err != nil {
		t.Fatalf("loader: %v", err)
	}
	if _, ok := loader.(*memory.StaticQuestionLoader); !ok {
		t.Fatalf("expected static loader, got %T", loader)
	}

	cfg.Questions.BankFile = "missing.yaml"
	if _, err := questionLoader(cfg, nil); err == nil {
		t.Fatalf("expected error for missing bank file")
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"start", "migrate", "seed", "token"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Fatalf("expected %s subcommand, got %v (%v)", name, sub, err)
		}
	}
}
