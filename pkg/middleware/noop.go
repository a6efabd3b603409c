package middleware

import (
	"context"

	"github.com/peter-kozarec/paperloop/pkg/common"
)

//goland:noinspection ALL
var (
	NoopPriceHdl     = func(context.Context, common.Price) {}
	NoopSignalHdl    = func(context.Context, common.Signal) {}
	NoopOrderHdl     = func(context.Context, common.Order) {}
	NoopFillHdl      = func(context.Context, common.Fill) {}
	NoopNoteHdl      = func(context.Context, common.Note) {}
	NoopOrderRjctHdl = func(context.Context, common.OrderRejected) {}
)
