package rpc

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kkkkikiki/checkout/internal/model"
)

// ValidateReply is the decoded ValidateCoupon response.
type ValidateReply struct {
	Valid    bool    `json:"valid"`
	Message  string  `json:"message"`
	Reason   string  `json:"reason"`
	Discount float64 `json:"discount"`
}

// CouponClient calls the coupon RPCs.
type CouponClient struct {
	validate *connect.Client[structpb.Struct, structpb.Struct]
	get      *connect.Client[structpb.Struct, structpb.Struct]
}

// NewCouponClient builds a client for the service at baseURL.
func NewCouponClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *CouponClient {
	return &CouponClient{
		validate: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+ValidateCouponProcedure, opts...),
		get:      connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+GetCouponProcedure, opts...),
	}
}

func (c *CouponClient) ValidateCoupon(ctx context.Context, code, planID, email string) (*ValidateReply, error) {
	req, err := structpb.NewStruct(map[string]any{"code": code, "planId": planID, "email": email})
	if err != nil {
		return nil, err
	}
	resp, err := c.validate.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}

	var out ValidateReply
	if err := fromStruct(resp.Msg, &out); err != nil {
		return nil, fmt.Errorf("failed to decode validate response: %w", err)
	}
	return &out, nil
}

func (c *CouponClient) GetCoupon(ctx context.Context, code string) (*model.Coupon, error) {
	req, err := structpb.NewStruct(map[string]any{"code": code})
	if err != nil {
		return nil, err
	}
	resp, err := c.get.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}

	var out model.Coupon
	if err := fromStruct(resp.Msg, &out); err != nil {
		return nil, fmt.Errorf("failed to decode coupon: %w", err)
	}
	return &out, nil
}
