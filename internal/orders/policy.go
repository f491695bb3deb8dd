package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/labstore-backend/pkg/config"
	"github.com/angelmondragon/labstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labstore-backend/pkg/errors"
)

// TransitionPolicy decides whether an order may move between two statuses.
type TransitionPolicy interface {
	Check(from, to enums.OrderStatus) error
}

// PermissivePolicy allows any status to be set from any status.
type PermissivePolicy struct{}

func (PermissivePolicy) Check(from, to enums.OrderStatus) error {
	return nil
}

// StrictPolicy keeps terminal orders terminal. Re-setting the current
// status is allowed.
type StrictPolicy struct{}

func (StrictPolicy) Check(from, to enums.OrderStatus) error {
	if from == to || !from.IsTerminal() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s and cannot move to %s", from, to)).WithDetails(map[string]any{
		"from": from,
		"to":   to,
	})
}

// TransitionPolicyFor picks the policy from configuration.
func TransitionPolicyFor(strict bool) TransitionPolicy {
	if strict {
		return StrictPolicy{}
	}
	return PermissivePolicy{}
}

// NoteMode controls how AddNote combines a new note with the existing one.
type NoteMode string

const (
	NoteModeReplace NoteMode = config.NoteModeReplace
	NoteModeAppend  NoteMode = config.NoteModeAppend
)

func (m NoteMode) apply(existing, text string) string {
	if m != NoteModeAppend || strings.TrimSpace(existing) == "" {
		return text
	}
	return existing + "\n" + text
}

// LeadTimes maps each shipping method to its delivery lead time in days.
type LeadTimes map[enums.ShippingMethod]int

// DefaultLeadTimes mirrors the configuration defaults.
func DefaultLeadTimes() LeadTimes {
	return LeadTimes{
		enums.ShippingMethodStandard: 5,
		enums.ShippingMethodExpress:  2,
		enums.ShippingMethodPickup:   1,
	}
}

// LeadTimesFromConfig maps configuration onto LeadTimes.
func LeadTimesFromConfig(cfg config.OrdersConfig) LeadTimes {
	return LeadTimes{
		enums.ShippingMethodStandard: cfg.StandardDays,
		enums.ShippingMethodExpress:  cfg.ExpressDays,
		enums.ShippingMethodPickup:   cfg.PickupDays,
	}
}

// EstimateDelivery returns from plus the method's lead time.
func (l LeadTimes) EstimateDelivery(method enums.ShippingMethod, from time.Time) time.Time {
	return from.AddDate(0, 0, l[method])
}
