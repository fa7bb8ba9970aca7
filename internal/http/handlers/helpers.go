package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"palmshell-dispatch/internal/apperr"
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/geo"
	"palmshell-dispatch/internal/http/middleware/auth"
	"palmshell-dispatch/internal/logx"
)

const bodyLimit = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

func reqID(ctx context.Context) string {
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	return "-"
}

func writeJSON(logger logx.Logger, w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil && logger != nil {
		logger.Warn("json encode error", logx.String("req_id", reqID(r.Context())), logx.Err(err))
	}
}

type errResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Details any    `json:"details,omitempty"`
}

func statusFor(kind string) int {
	switch kind {
	case "invalid_input", "invalid_items":
		return http.StatusBadRequest
	case "unauthenticated":
		return http.StatusUnauthorized
	case "forbidden":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "invalid_state", "out_of_stock", "driver_unavailable", "conflict":
		return http.StatusConflict
	case "outside_geofence":
		return http.StatusUnprocessableEntity
	case "gateway_error":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorDetails(err error) any {
	var se *apperr.StockError
	if errors.As(err, &se) {
		return map[string]any{
			"product_id": se.ProductID,
			"name":       se.Name,
			"requested":  se.Requested,
			"available":  se.Available,
		}
	}
	var ge *apperr.GeofenceError
	if errors.As(err, &ge) {
		return map[string]any{
			"distance_km": geo.Round2(ge.DistanceKm),
			"radius_km":   ge.RadiusKm,
		}
	}
	var ie *apperr.ItemError
	if errors.As(err, &ie) {
		return map[string]any{
			"product_id": ie.ProductID,
			"reason":     ie.Reason,
		}
	}
	return nil
}

// writeError maps a service error onto the API error body.
func writeError(logger logx.Logger, w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.Kind(err)
	status := statusFor(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}

	if logger != nil {
		fields := []logx.Field{
			logx.String("req_id", reqID(r.Context())),
			logx.Int("status", status),
			logx.String("kind", kind),
			logx.Err(err),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("http error", fields...)
		} else {
			logger.Info("http error", fields...)
		}
	}
	writeJSON(logger, w, r, status, errResponse{Error: msg, Kind: kind, Details: errorDetails(err)})
}

func writeInvalid(logger logx.Logger, w http.ResponseWriter, r *http.Request, msg string, details any) {
	if logger != nil {
		logger.Info("http error",
			logx.String("req_id", reqID(r.Context())),
			logx.Int("status", http.StatusBadRequest),
			logx.String("msg", msg),
		)
	}
	writeJSON(logger, w, r, http.StatusBadRequest, errResponse{Error: msg, Kind: "invalid_input", Details: details})
}

// decodeJSON reads and validates the body. An empty body is accepted when optional is set.
func decodeJSON[T any](logger logx.Logger, w http.ResponseWriter, r *http.Request, dst *T, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			writeInvalid(logger, w, r, "invalid json", nil)
			return false
		}
	} else if err := dec.Decode(new(struct{})); err != io.EOF {
		writeInvalid(logger, w, r, "invalid json: trailing data", nil)
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[fe.Field()] = validationMessage(fe)
			}
			writeInvalid(logger, w, r, "validation failed", details)
			return false
		}
		writeInvalid(logger, w, r, "validation failed", nil)
		return false
	}
	return true
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_with":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	}
	return "is invalid"
}

func idFromURL(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", apperr.ErrInvalid, name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: invalid %s", apperr.ErrInvalid, name)
	}
	return v, nil
}

// actor returns the authenticated caller; routes without auth never call it.
func actor(r *http.Request) (domain.Actor, error) {
	a, ok := auth.ActorFrom(r.Context())
	if !ok {
		return domain.Actor{}, apperr.ErrUnauthenticated
	}
	return a, nil
}

func orNop(l logx.Logger) logx.Logger {
	if l == nil {
		return logx.Nop()
	}
	return l
}
