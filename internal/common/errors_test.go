package common_test

import (
	"errors"
	"fmt"
	"testing"

	"paworker/internal/common"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want common.Kind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), common.KindInternal},
		{"missing content", common.MissingContent(7), common.KindMissingContent},
		{"wrapped persistence", fmt.Errorf("step: %w", common.Persistence("insert", errors.New("conn reset"))), common.KindPersistence},
		{"guard", fmt.Errorf("mark ready: %w", common.ErrStatusGuard), common.KindStatusGuard},
		{"structural", common.Structural("missing_fields absent"), common.KindExtractionStructural},
		{"malformed", common.Malformed("bad json", nil), common.KindMalformedJob},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := common.KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPersistenceNilPassthrough(t *testing.T) {
	if err := common.Persistence("noop", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestAppErrorUnwrapAndClassifier(t *testing.T) {
	cause := errors.New("deadline exceeded")
	err := common.Persistence("finalize pack", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable through Unwrap")
	}

	var classifier interface{ ErrorKind() string }
	if !errors.As(err, &classifier) {
		t.Fatal("expected AppError to satisfy the classifier interface")
	}
	if classifier.ErrorKind() != "persistence" {
		t.Fatalf("ErrorKind = %q", classifier.ErrorKind())
	}
	if got := err.Error(); got != "persistence: finalize pack: deadline exceeded" {
		t.Fatalf("unexpected message %q", got)
	}
}
