package billing

import (
	"testing"
	"time"

	"github.com/andrelfnavarro/cidi-api/internal/platform/payment"
)

func TestApplyRemote(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	remote := &payment.Subscription{
		ID:                 "sub_1",
		CustomerID:         "cus_1",
		Status:             payment.SubscriptionTrialing,
		Quantity:           4,
		PriceID:            "price_basic",
		CurrentPeriodStart: start.Unix(),
		CurrentPeriodEnd:   end.Unix(),
		TrialEnd:           end.Unix(),
		CancelAtPeriodEnd:  true,
	}

	var s Subscription
	s.applyRemote(remote)

	if s.RemoteID != "sub_1" || s.RemoteCustomerID != "cus_1" {
		t.Errorf("remote ids not copied: %+v", s)
	}
	if s.Status != payment.SubscriptionTrialing || s.Quantity != 4 || s.PriceID != "price_basic" {
		t.Errorf("plan fields not copied: %+v", s)
	}
	if s.CurrentPeriodStart == nil || !s.CurrentPeriodStart.Equal(start) {
		t.Errorf("period start = %v", s.CurrentPeriodStart)
	}
	if s.TrialEnd == nil || !s.TrialEnd.Equal(end) {
		t.Errorf("trial end = %v", s.TrialEnd)
	}
	if !s.CancelAtPeriodEnd {
		t.Error("cancel flag not copied")
	}
}

func TestApplyRemote_ZeroTimestampsStayNil(t *testing.T) {
	var s Subscription
	s.applyRemote(&payment.Subscription{ID: "sub_1", Status: payment.SubscriptionActive})

	if s.CurrentPeriodStart != nil || s.CurrentPeriodEnd != nil || s.TrialEnd != nil {
		t.Errorf("zero timestamps produced values: %+v", s)
	}
}
