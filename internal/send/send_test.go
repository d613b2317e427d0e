package send

import (
	"context"
	"strings"
	"testing"

	"chatdispatch/internal/adapter"
	"chatdispatch/internal/adapter/mock"
	"chatdispatch/internal/model"

	"go.uber.org/zap"
)

func testUseCase() *UseCase {
	registry := adapter.NewRegistry(
		mock.New(model.PlatformTelegram, zap.NewNop()),
		mock.New(model.PlatformVK, zap.NewNop()),
		mock.New(model.PlatformMAX, zap.NewNop()),
	)
	return New(nil, nil, nil, registry, zap.NewNop())
}

func TestValidate_EmptyContent(t *testing.T) {
	uc := testUseCase()
	err := uc.validate(Request{
		UserID:       "user-1",
		Text:         "",
		Destinations: []DestinationRequest{{Platform: model.PlatformTelegram, ChatID: "123"}},
	})
	if err != ErrEmptyContent {
		t.Errorf("validate() error = %v, want ErrEmptyContent", err)
	}
}

func TestValidate_NoDestinations(t *testing.T) {
	uc := testUseCase()
	err := uc.validate(Request{UserID: "user-1", Text: "hi"})
	if err != ErrNoDestinations {
		t.Errorf("validate() error = %v, want ErrNoDestinations", err)
	}
}

func TestValidate_UnknownPlatform(t *testing.T) {
	uc := testUseCase()
	err := uc.validate(Request{
		UserID:       "user-1",
		Text:         "hi",
		Destinations: []DestinationRequest{{Platform: "whatsapp", ChatID: "123"}},
	})
	if err == nil {
		t.Fatal("expected error for unknown platform")
	}
}

func TestValidate_InvalidChatID(t *testing.T) {
	uc := testUseCase()
	err := uc.validate(Request{
		UserID:       "user-1",
		Text:         "hi",
		Destinations: []DestinationRequest{{Platform: model.PlatformVK, ChatID: "not-a-peer-id"}},
	})
	if err == nil {
		t.Fatal("expected error for invalid chat_id")
	}
}

func TestValidate_Success(t *testing.T) {
	uc := testUseCase()
	err := uc.validate(Request{
		UserID: "user-1",
		Text:   "hi",
		Destinations: []DestinationRequest{
			{Platform: model.PlatformTelegram, ChatID: "123"},
			{Platform: model.PlatformVK, ChatID: "456"},
		},
	})
	if err != nil {
		t.Errorf("validate() error = %v, want nil", err)
	}
}

func TestValidate_TextLengthBoundaries(t *testing.T) {
	uc := testUseCase()
	dest := []DestinationRequest{{Platform: model.PlatformTelegram, ChatID: "123"}}

	if err := uc.validate(Request{UserID: "user-1", Text: strings.Repeat("a", MaxTextLength), Destinations: dest}); err != nil {
		t.Errorf("validate() at %d chars error = %v, want nil", MaxTextLength, err)
	}
	if err := uc.validate(Request{UserID: "user-1", Text: strings.Repeat("a", MaxTextLength+1), Destinations: dest}); err != ErrTextTooLong {
		t.Errorf("validate() at %d chars error = %v, want ErrTextTooLong", MaxTextLength+1, err)
	}
}

func TestValidate_DestinationCountBoundaries(t *testing.T) {
	uc := testUseCase()

	at100 := make([]DestinationRequest, MaxDestinations)
	for i := range at100 {
		at100[i] = DestinationRequest{Platform: model.PlatformTelegram, ChatID: "123"}
	}
	if err := uc.validate(Request{UserID: "user-1", Text: "hi", Destinations: at100}); err != nil {
		t.Errorf("validate() with %d destinations error = %v, want nil", MaxDestinations, err)
	}

	at101 := append(at100, DestinationRequest{Platform: model.PlatformTelegram, ChatID: "123"})
	if err := uc.validate(Request{UserID: "user-1", Text: "hi", Destinations: at101}); err != ErrTooManyDests {
		t.Errorf("validate() with %d destinations error = %v, want ErrTooManyDests", MaxDestinations+1, err)
	}
}

func TestValidate_EmptyChatID(t *testing.T) {
	uc := testUseCase()
	err := uc.validate(Request{
		UserID:       "user-1",
		Text:         "hi",
		Destinations: []DestinationRequest{{Platform: model.PlatformTelegram, ChatID: ""}},
	})
	if err != ErrEmptyChatID {
		t.Errorf("validate() error = %v, want ErrEmptyChatID", err)
	}
}

func TestExecute_FailsValidationBeforePersisting(t *testing.T) {
	uc := testUseCase()
	_, err := uc.Execute(context.Background(), Request{UserID: "user-1", Text: ""})
	if err != ErrEmptyContent {
		t.Errorf("Execute() error = %v, want ErrEmptyContent", err)
	}
}
