package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/md-rashed-zaman/availmgr/libs/httpx"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/booking"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/calendar"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/civiltime"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/importer"
	"github.com/md-rashed-zaman/availmgr/services/availability-service/internal/storage"
)

const slotUnavailableMessage = "Selected slot is no longer available. Please choose another slot."

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type conflictResponse struct {
	Error             string  `json:"error"`
	Conflict          bool    `json:"conflict"`
	ConflictingEvents []int64 `json:"conflicting_events"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("zone", func(fl validator.FieldLevel) bool {
		_, err := civiltime.ParseZone(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("timeofday", func(fl validator.FieldLevel) bool {
		_, err := civiltime.ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min", "max":
		return fe.Field() + " must be " + fe.Tag() + " " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "zone":
		return fe.Field() + " must be one of PT, MT, CT, ET, UTC"
	case "timeofday":
		return fe.Field() + " must be a time such as 09:30 or 9:30 AM"
	default:
		return fe.Field() + " is invalid"
	}
}

func writeValidation(w http.ResponseWriter, errs validator.ValidationErrors) {
	resp := errorResponse{Fields: make(map[string]string, len(errs))}
	for i, fe := range errs {
		msg := validationMessage(fe)
		resp.Fields[fe.Field()] = msg
		if i == 0 {
			resp.Error = msg
		}
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

// fail maps domain errors onto HTTP responses. Anything unrecognised is
// logged and reported as a 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr validator.ValidationErrors
		perr *civiltime.ParseError
		cerr *calendar.ConflictError
		lerr *calendar.LockedError
	)
	switch {
	case errors.As(err, &verr):
		writeValidation(w, verr)
	case errors.As(err, &perr),
		errors.Is(err, calendar.ErrInvalid),
		errors.Is(err, booking.ErrInvalid),
		errors.Is(err, importer.ErrMalformed),
		errors.Is(err, importer.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &cerr):
		writeJSON(w, http.StatusConflict, conflictResponse{
			Error:             cerr.Error(),
			Conflict:          true,
			ConflictingEvents: cerr.IDs(),
		})
	case errors.As(err, &lerr):
		writeError(w, http.StatusForbidden, lerr.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, slotUnavailableMessage)
	case errors.Is(err, booking.ErrLinkNotFound):
		writeError(w, http.StatusNotFound, "Invalid or expired link")
	case storage.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found")
	case storage.IsUniqueViolation(err):
		writeError(w, http.StatusConflict, "already exists")
	case storage.IsConflict(err):
		writeError(w, http.StatusConflict, "concurrent update, please retry")
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"err", err,
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.fail(w, r, err)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// queryDate reads an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, key string) (civiltime.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return civiltime.Date{}, nil
	}
	return civiltime.ParseDate(raw)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &civiltime.ParseError{Kind: key, Input: raw}
	}
	return n, nil
}

// queryOptionalInt returns nil when the parameter is absent.
func queryOptionalInt(r *http.Request, key string) (*int, error) {
	if strings.TrimSpace(r.URL.Query().Get(key)) == "" {
		return nil, nil
	}
	n, err := queryInt(r, key, 0)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// queryZone resolves a zone code leniently: unknown codes fall back to PT.
func queryZone(r *http.Request) civiltime.Zone {
	return civiltime.ResolveZone(r.URL.Query().Get("timezone"))
}
