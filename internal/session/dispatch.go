package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/gatewire/internal/ctxkeys"
	"github.com/BaSui01/gatewire/internal/router"
	"github.com/BaSui01/gatewire/internal/telemetry"
	"github.com/BaSui01/gatewire/types"
)

// exchange is the outcome of one dispatched request.
type exchange struct {
	req   *types.Request
	resp  *types.Response
	route string
	start time.Time
}

// dispatch resolves req and invokes its handler behind the fault barrier.
// The returned response is always non-nil and normalized. Shared by the
// HTTP/1 loop and the HTTP/2 stream handler.
func (s *Session) dispatch(ctx context.Context, req *types.Request) *exchange {
	ex := &exchange{req: req, start: time.Now()}
	s.publish(types.RequestObserved(s.id, req))

	ctx = ctxkeys.WithConnectionID(ctx, s.id.String())
	ctx = ctxkeys.WithRemoteAddr(ctx, s.remote)
	ctx = ctxkeys.WithProtocol(ctx, req.Protocol)
	ctx, span := telemetry.StartRequestSpan(ctx, s.id, req)

	var herr error
	m, err := s.routes.Resolve(req.Method, req.Path)
	var mna *router.MethodNotAllowedError
	switch {
	case err == nil:
		ex.route = m.Pattern
		req.Params = m.Params
		ctx = ctxkeys.WithRoutePattern(ctx, m.Pattern)
		ex.resp, herr = s.invoke(ctx, m, req)
	case errors.As(err, &mna):
		ex.resp = types.MethodNotAllowed().WithHeader("allow", strings.Join(mna.Allowed, ", "))
	case errors.Is(err, router.ErrNotFound):
		ex.resp = types.NotFound()
	default:
		herr = err
		ex.resp = types.InternalServerError()
	}

	if herr != nil {
		ex.resp = types.InternalServerError()
		s.rec.RecordSessionError(types.StageHandler)
		s.publish(types.ErrorEvent(s.id, types.StageHandler, herr))
		s.logger.Error("handler failed",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("route", ex.route),
			zap.Error(herr),
		)
	}
	ex.resp.Normalize()
	telemetry.EndRequestSpan(span, ex.route, ex.resp.Status, herr)
	return ex
}

// invoke calls the handler. A panic, an error return, or a nil response is
// converted into a *types.Error.
func (s *Session) invoke(ctx context.Context, m router.Match, req *types.Request) (resp *types.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.rec.RecordHandlerPanic(m.Pattern)
			resp, err = nil, types.NewPanicError(r)
		}
	}()

	resp, err = m.Handler.ServeWire(ctx, s.id, req)
	if err != nil {
		if _, ok := types.AsError(err); ok {
			return nil, err
		}
		return nil, types.NewError(types.ErrHandlerError, "handler returned error").
			WithStage(types.StageHandler).WithCause(err)
	}
	if resp == nil {
		return nil, types.NewError(types.ErrNilResponse, "handler returned nil response").
			WithStage(types.StageHandler)
	}
	return resp, nil
}

// complete records a written exchange.
func (s *Session) complete(ex *exchange) {
	s.rec.RecordRequest(ex.req.Protocol, ex.req.Method, ex.route, ex.resp.Status,
		time.Since(ex.start), int64(len(ex.req.Body)), int64(len(ex.resp.Body)))
	s.publish(types.ResponseSent(s.id, ex.req, ex.resp))
}
