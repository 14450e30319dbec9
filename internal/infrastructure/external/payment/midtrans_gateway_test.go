package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	domainErrors "github.com/bivex/subscription-renewals/internal/domain/errors"
)

type fakeCharger struct {
	req  *coreapi.ChargeReq
	resp *coreapi.ChargeResponse
	err  *midtrans.Error
}

func (f *fakeCharger) ChargeTransaction(req *coreapi.ChargeReq) (*coreapi.ChargeResponse, *midtrans.Error) {
	f.req = req
	return f.resp, f.err
}

func renewalFixture(token string) (*entity.Payment, *entity.Subscription) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	sub := entity.NewSubscription(7, uuid.New(), entity.TypeQuran, entity.BillingMonthly, 49.6, "IDR")
	sub.PaymentToken = token
	return entity.NewRenewalPayment(sub, 49.6, now), sub
}

func TestMidtransGateway_ProcessSubscriptionRenewal(t *testing.T) {
	ctx := context.Background()

	t.Run("missing token is a declined result without a charge", func(t *testing.T) {
		fc := &fakeCharger{}
		gw := newMidtransGateway(fc, nil)
		p, sub := renewalFixture("")

		res, err := gw.ProcessSubscriptionRenewal(ctx, p, sub)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, domainErrors.ErrNoSavedPaymentCard.Error(), res.Error)
		assert.Nil(t, fc.req)
	})

	t.Run("settled charge succeeds", func(t *testing.T) {
		fc := &fakeCharger{resp: &coreapi.ChargeResponse{TransactionID: "tx-1", TransactionStatus: "settlement"}}
		gw := newMidtransGateway(fc, nil)
		p, sub := renewalFixture("saved-token")

		res, err := gw.ProcessSubscriptionRenewal(ctx, p, sub)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "tx-1", res.TransactionID)

		require.NotNil(t, fc.req)
		assert.Equal(t, p.PaymentCode, fc.req.TransactionDetails.OrderID)
		assert.Equal(t, int64(50), fc.req.TransactionDetails.GrossAmt)
		assert.Equal(t, "saved-token", fc.req.CreditCard.TokenID)
	})

	t.Run("capture challenged by fraud screening is declined", func(t *testing.T) {
		fc := &fakeCharger{resp: &coreapi.ChargeResponse{TransactionID: "tx-2", TransactionStatus: "capture", FraudStatus: "challenge"}}
		gw := newMidtransGateway(fc, nil)
		p, sub := renewalFixture("saved-token")

		res, err := gw.ProcessSubscriptionRenewal(ctx, p, sub)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.Error)
	})

	t.Run("denied charge carries the gateway message", func(t *testing.T) {
		fc := &fakeCharger{resp: &coreapi.ChargeResponse{TransactionStatus: "deny", StatusMessage: "Card declined by bank"}}
		gw := newMidtransGateway(fc, nil)
		p, sub := renewalFixture("saved-token")

		res, err := gw.ProcessSubscriptionRenewal(ctx, p, sub)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "Card declined by bank", res.Error)
	})

	t.Run("client error is a declined result", func(t *testing.T) {
		fc := &fakeCharger{err: &midtrans.Error{StatusCode: 406, Message: "token expired"}}
		gw := newMidtransGateway(fc, nil)
		p, sub := renewalFixture("saved-token")

		res, err := gw.ProcessSubscriptionRenewal(ctx, p, sub)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "token expired", res.Error)
	})

	t.Run("server error is returned as an error", func(t *testing.T) {
		fc := &fakeCharger{err: &midtrans.Error{StatusCode: 503, Message: "maintenance"}}
		gw := newMidtransGateway(fc, nil)
		p, sub := renewalFixture("saved-token")

		res, err := gw.ProcessSubscriptionRenewal(ctx, p, sub)
		assert.Nil(t, res)
		assert.True(t, errors.Is(err, domainErrors.ErrExternalServiceUnavailable))
	})

	t.Run("cancelled context does not charge", func(t *testing.T) {
		fc := &fakeCharger{}
		gw := newMidtransGateway(fc, nil)
		p, sub := renewalFixture("saved-token")
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := gw.ProcessSubscriptionRenewal(cctx, p, sub)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, fc.req)
	})
}
