package validation

import "testing"

type ratingRequest struct {
	AnimeID uint64 `json:"animeId" validate:"required"`
	Score   int    `json:"score" validate:"min=1,max=5"`
}

type commentRequest struct {
	Content string `json:"content" validate:"required,max=10"`
}

func TestValidateStructPasses(t *testing.T) {
	if err := ValidateStruct(&ratingRequest{AnimeID: 1, Score: 5}); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(&ratingRequest{Score: 9})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(err.Errors) != 2 {
		t.Fatalf("expected 2 field errors, got %d: %v", len(err.Errors), err)
	}

	byField := map[string]FieldError{}
	for _, e := range err.Errors {
		byField[e.Field] = e
	}
	if e, ok := byField["animeId"]; !ok || e.Tag != "required" || e.Message != "animeId is required" {
		t.Errorf("unexpected animeId error %+v", e)
	}
	if e, ok := byField["score"]; !ok || e.Tag != "max" || e.Message != "score must be at most 5" {
		t.Errorf("unexpected score error %+v", e)
	}
}

func TestStringLengthMessage(t *testing.T) {
	err := ValidateStruct(&commentRequest{Content: "this is far too long"})
	if err == nil || len(err.Errors) != 1 {
		t.Fatalf("expected one error, got %v", err)
	}
	if got := err.Errors[0].Message; got != "content must be at most 10 characters" {
		t.Errorf("unexpected message %q", got)
	}
}
