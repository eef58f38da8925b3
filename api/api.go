// Package api exposes the tree service to API Gateway HTTP APIs and Cognito
// triggers.
//
// Requests are JSON RPC-style calls authenticated by a JWT authorizer; the
// token's "sub" claim is the owner every operation runs as.
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/grove/tree"
)

// CodeUnauthenticated is returned when the request carries no principal.
const CodeUnauthenticated = "unauthenticated"

// maxBodySize bounds request bodies.
const maxBodySize = 64 << 10

var errUnauthenticated = errors.New("grove: unauthenticated")

// Handler routes API Gateway requests to a tree.Service.
type Handler struct {
	svc    *tree.Service
	logger *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(svc *tree.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

// ErrorBody is the JSON shape of error responses.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the wire code and a message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// request is a decoded inbound call.
type request struct {
	owner  string
	method string
	path   []string
	body   []byte
}

// decode unmarshals the request body into out, rejecting unknown fields.
func (r *request) decode(out any) error {
	if len(r.body) == 0 {
		return fmt.Errorf("%w: request body is required", tree.ErrInvalidArgument)
	}
	dec := json.NewDecoder(bytes.NewReader(r.body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", tree.ErrInvalidArgument, err)
	}
	return nil
}

// Handle serves one API Gateway HTTP API (payload version 2.0) request.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	r, err := parseRequest(req)
	if err != nil {
		return h.fail(req, err), nil
	}

	status, out, err := h.route(ctx, r)
	if err != nil {
		return h.fail(req, err), nil
	}
	return respond(status, out), nil
}

func parseRequest(req events.APIGatewayV2HTTPRequest) (*request, error) {
	r := &request{
		owner:  principal(req),
		method: req.RequestContext.HTTP.Method,
		path:   splitPath(req.RawPath),
	}
	if r.owner == "" {
		return nil, errUnauthenticated
	}
	if r.method == "" {
		r.method = http.MethodGet
	}

	body := req.Body
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("%w: request body exceeds %d bytes", tree.ErrInvalidArgument, maxBodySize)
	}
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed base64 body", tree.ErrInvalidArgument)
		}
		r.body = decoded
	} else {
		r.body = []byte(body)
	}
	return r, nil
}

// principal returns the JWT subject set by the API Gateway authorizer.
func principal(req events.APIGatewayV2HTTPRequest) string {
	auth := req.RequestContext.Authorizer
	if auth == nil || auth.JWT == nil {
		return ""
	}
	return auth.JWT.Claims["sub"]
}

func splitPath(raw string) []string {
	raw = strings.Trim(raw, "/")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "/")
}

func respond(status int, out any) events.APIGatewayV2HTTPResponse {
	resp := events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
	if out == nil {
		return resp
	}
	data, err := json.Marshal(out)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, tree.CodeInternal, "internal error")
	}
	resp.Body = string(data)
	return resp
}

func (h *Handler) fail(req events.APIGatewayV2HTTPRequest, err error) events.APIGatewayV2HTTPResponse {
	code := Code(err)
	status := StatusFor(code)
	message := err.Error()
	if code == tree.CodeInternal {
		h.logger.Error("request failed",
			"method", req.RequestContext.HTTP.Method,
			"path", req.RawPath,
			"requestID", req.RequestContext.RequestID,
			"error", err,
		)
		message = "internal error"
	}
	return errorResponse(status, code, message)
}

func errorResponse(status int, code, message string) events.APIGatewayV2HTTPResponse {
	data, _ := json.Marshal(ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(data),
	}
}

// Code returns the wire code for err, including CodeUnauthenticated.
func Code(err error) string {
	if errors.Is(err, errUnauthenticated) {
		return CodeUnauthenticated
	}
	return tree.Code(err)
}

// StatusFor maps a wire code to an HTTP status.
func StatusFor(code string) int {
	switch code {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case tree.CodeNotFound:
		return http.StatusNotFound
	case tree.CodeAlreadyExists, tree.CodeAborted:
		return http.StatusConflict
	case tree.CodePermissionDenied:
		return http.StatusForbidden
	case tree.CodeInvalidArgument:
		return http.StatusBadRequest
	case tree.CodeFailedPrecondition:
		return http.StatusPreconditionFailed
	case tree.CodeUnimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// HandlePostConfirmation provisions the default namespace of a newly
// confirmed Cognito user. Cognito may deliver the trigger more than once.
func (h *Handler) HandlePostConfirmation(ctx context.Context, event events.CognitoEventUserPoolsPostConfirmation) (events.CognitoEventUserPoolsPostConfirmation, error) {
	owner := event.Request.UserAttributes["sub"]
	if owner == "" {
		owner = event.UserName
	}

	ns, created, err := h.svc.BootstrapOwner(ctx, owner)
	if err != nil {
		h.logger.Error("failed to bootstrap owner", "owner", owner, "error", err)
		return event, err
	}
	h.logger.Info("owner bootstrapped",
		"owner", owner,
		"namespace", ns.ID,
		"created", created,
	)
	return event, nil
}
