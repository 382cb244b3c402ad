// Package rpc serves coupon lookups over Connect. Messages are
// google.protobuf.Struct so no generated code is needed on either side.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kkkkikiki/checkout/internal/apperr"
	"github.com/kkkkikiki/checkout/internal/service"
)

const (
	// CouponServiceName is the fully-qualified name of the coupon service.
	CouponServiceName = "checkout.v1.CouponService"

	ValidateCouponProcedure = "/" + CouponServiceName + "/ValidateCoupon"
	GetCouponProcedure      = "/" + CouponServiceName + "/GetCoupon"
)

// CouponServer implements the read-only coupon RPCs.
type CouponServer struct {
	coupons *service.CouponService
	logger  *zap.Logger
}

// NewCouponServer creates a new CouponServer instance
func NewCouponServer(coupons *service.CouponService, logger *zap.Logger) *CouponServer {
	return &CouponServer{coupons: coupons, logger: logger.Named("rpc")}
}

// NewCouponServiceHandler returns the path prefix to mount and its handler.
func NewCouponServiceHandler(s *CouponServer, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(ValidateCouponProcedure, connect.NewUnaryHandler(ValidateCouponProcedure, s.ValidateCoupon, opts...))
	mux.Handle(GetCouponProcedure, connect.NewUnaryHandler(GetCouponProcedure, s.GetCoupon, opts...))
	return "/" + CouponServiceName + "/", mux
}

// ValidateCoupon runs the coupon gates without recording a use.
// Request fields: code, planId, email (optional).
func (s *CouponServer) ValidateCoupon(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	code := stringField(req.Msg, "code")
	planID := stringField(req.Msg, "planId")
	if strings.TrimSpace(code) == "" || planID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New(service.MsgCouponFieldsNeeded))
	}

	res, err := s.coupons.Validate(ctx, code, planID, stringField(req.Msg, "email"))
	if err != nil {
		return nil, connectError(err)
	}

	out := map[string]any{
		"valid":   res.Valid,
		"message": res.Message,
		"reason":  res.Reason,
	}
	if res.Valid {
		out["discount"] = res.Discount
		out["code"] = res.Coupon.Code
		out["type"] = string(res.Coupon.Type)
	}
	msg, err := structpb.NewStruct(out)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("failed to encode response: %w", err))
	}
	return connect.NewResponse(msg), nil
}

// GetCoupon returns the stored coupon for the request's code field.
func (s *CouponServer) GetCoupon(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	code := stringField(req.Msg, "code")
	if strings.TrimSpace(code) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("coupon code is required"))
	}

	c, err := s.coupons.GetCoupon(ctx, code)
	if err != nil {
		return nil, connectError(err)
	}
	msg, err := toStruct(c)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("failed to encode coupon: %w", err))
	}
	return connect.NewResponse(msg), nil
}

func connectError(err error) *connect.Error {
	switch {
	case apperr.IsNotFound(err):
		return connect.NewError(connect.CodeNotFound, err)
	case apperr.IsValidation(err):
		return connect.NewError(connect.CodeInvalidArgument, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

// toStruct converts v through its JSON form so struct tags carry over.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, err
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
