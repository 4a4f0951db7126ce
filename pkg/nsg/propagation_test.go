package nsg

import (
	"testing"

	"github.com/google/uuid"
)

func TestAggregate_Unknown(t *testing.T) {
	if got := Aggregate(nil, 0); got != PropagationUnknown {
		t.Errorf("got %s, want %s", got, PropagationUnknown)
	}
	if got := Aggregate(nil, 3); got != PropagationUnknown {
		t.Errorf("got %s, want %s", got, PropagationUnknown)
	}
}

func TestAggregate_Full(t *testing.T) {
	reports := []AttachmentReport{
		{InstanceID: uuid.New(), Applied: true},
		{InstanceID: uuid.New(), Applied: true},
	}
	if got := Aggregate(reports, 2); got != PropagationFull {
		t.Errorf("got %s, want %s", got, PropagationFull)
	}
}

func TestAggregate_Error(t *testing.T) {
	reports := []AttachmentReport{
		{InstanceID: uuid.New(), Error: "timeout"},
		{InstanceID: uuid.New(), Error: "rejected"},
	}
	if got := Aggregate(reports, 2); got != PropagationError {
		t.Errorf("got %s, want %s", got, PropagationError)
	}
}

func TestAggregate_Partial_MixApplyAndError(t *testing.T) {
	reports := []AttachmentReport{
		{InstanceID: uuid.New(), Applied: true},
		{InstanceID: uuid.New(), Error: "rejected"},
	}
	if got := Aggregate(reports, 2); got != PropagationPartial {
		t.Errorf("got %s, want %s", got, PropagationPartial)
	}
}

func TestAggregate_Partial_SomeNotYetReported(t *testing.T) {
	reports := []AttachmentReport{
		{InstanceID: uuid.New(), Applied: true},
	}
	if got := Aggregate(reports, 3); got != PropagationPartial {
		t.Errorf("got %s, want %s", got, PropagationPartial)
	}
}

func TestAggregate_None(t *testing.T) {
	reports := []AttachmentReport{
		{InstanceID: uuid.New()},
		{InstanceID: uuid.New()},
	}
	if got := Aggregate(reports, 2); got != PropagationNone {
		t.Errorf("got %s, want %s", got, PropagationNone)
	}
}
