package web

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// MaxPromptLength is measured in characters after trimming.
const MaxPromptLength = 1000

type chatRequest struct {
	Prompt         string `json:"prompt" validate:"required,max=1000"`
	ConversationID string `json:"conversationId" validate:"required,conversation_id"`
}

// fieldMessages maps field+tag to the text shown next to the input.
var fieldMessages = map[string]string{
	"prompt.required":                "Prompt is required",
	"prompt.max":                     "Prompt too long (max 1000 characters)",
	"conversationId.required":        "Conversation id is required",
	"conversationId.conversation_id": "Conversation id must be a UUID",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("conversation_id", isConversationID); err != nil {
		panic("web: register validation: " + err.Error())
	}
	return v
}

// isConversationID accepts canonical 8-4-4-4-12 UUIDs in either case with an RFC 9562
// version (1-8) and variant, plus the nil and max UUIDs.
func isConversationID(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != 36 {
		return false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	if id == uuid.Nil || id == uuid.Max {
		return true
	}
	v := id.Version()
	return v >= 1 && v <= 8 && id.Variant() == uuid.RFC4122
}

// validateRequest trims the prompt in place and returns field errors, nil when valid.
func validateRequest(v *validator.Validate, req *chatRequest) map[string][]string {
	req.Prompt = strings.TrimSpace(req.Prompt)
	req.ConversationID = strings.TrimSpace(req.ConversationID)

	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string][]string{"body": {"invalid request"}}
	}
	out := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = "invalid value"
		}
		out[fe.Field()] = append(out[fe.Field()], msg)
	}
	return out
}
