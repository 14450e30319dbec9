package payment

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"go.uber.org/zap"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	domainErrors "github.com/bivex/subscription-renewals/internal/domain/errors"
	"github.com/bivex/subscription-renewals/internal/domain/service"
)

// Midtrans transaction statuses
const (
	statusCapture    = "capture"
	statusSettlement = "settlement"
	statusPending    = "pending"
	fraudAccept      = "accept"
)

// charger is the part of coreapi.Client the gateway uses
type charger interface {
	ChargeTransaction(req *coreapi.ChargeReq) (*coreapi.ChargeResponse, *midtrans.Error)
}

// MidtransGateway charges saved card tokens through the Midtrans Core API
type MidtransGateway struct {
	client charger
	logger *zap.Logger
}

var _ service.PaymentGateway = (*MidtransGateway)(nil)

// NewMidtransGateway creates a gateway for the given server key. environment is
// "production" or anything else for sandbox.
func NewMidtransGateway(serverKey, environment string, logger *zap.Logger) *MidtransGateway {
	env := midtrans.Sandbox
	if environment == "production" {
		env = midtrans.Production
	}
	var c coreapi.Client
	c.New(serverKey, env)
	return newMidtransGateway(&c, logger)
}

func newMidtransGateway(client charger, logger *zap.Logger) *MidtransGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MidtransGateway{client: client, logger: logger}
}

// ProcessSubscriptionRenewal charges the subscription's saved token for the payment amount.
// Declines and a missing token are results; transport and server errors are returned as errors.
func (g *MidtransGateway) ProcessSubscriptionRenewal(ctx context.Context, p *entity.Payment, sub *entity.Subscription) (*service.GatewayResult, error) {
	if sub.PaymentToken == "" {
		return &service.GatewayResult{Success: false, Error: domainErrors.ErrNoSavedPaymentCard.Error()}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := &coreapi.ChargeReq{
		PaymentType: coreapi.PaymentTypeCreditCard,
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  p.PaymentCode,
			GrossAmt: int64(math.Round(p.Amount)),
		},
		CreditCard: &coreapi.CreditCardDetails{
			TokenID: sub.PaymentToken,
		},
	}

	resp, midErr := g.client.ChargeTransaction(req)
	if midErr != nil {
		if midErr.StatusCode == 0 || midErr.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: midtrans charge: %s", domainErrors.ErrExternalServiceUnavailable, midErr.GetMessage())
		}
		g.logger.Info("midtrans rejected charge",
			zap.String("payment_code", p.PaymentCode),
			zap.Int("status_code", midErr.StatusCode),
			zap.String("message", midErr.GetMessage()))
		return &service.GatewayResult{Success: false, Error: midErr.GetMessage()}, nil
	}

	return interpretCharge(resp), nil
}

func interpretCharge(resp *coreapi.ChargeResponse) *service.GatewayResult {
	switch resp.TransactionStatus {
	case statusSettlement:
		return &service.GatewayResult{Success: true, TransactionID: resp.TransactionID}
	case statusCapture:
		if resp.FraudStatus == "" || resp.FraudStatus == fraudAccept {
			return &service.GatewayResult{Success: true, TransactionID: resp.TransactionID}
		}
		return &service.GatewayResult{TransactionID: resp.TransactionID, Error: "charge held for fraud review"}
	case statusPending:
		return &service.GatewayResult{TransactionID: resp.TransactionID, Error: "charge requires customer action"}
	}
	msg := resp.StatusMessage
	if msg == "" {
		msg = fmt.Sprintf("charge %s", resp.TransactionStatus)
	}
	return &service.GatewayResult{TransactionID: resp.TransactionID, Error: msg}
}
