package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Proton-105/itpomosh-bot/internal/domain"
	errors "github.com/Proton-105/itpomosh-bot/internal/errors"
	"github.com/Proton-105/itpomosh-bot/internal/validation"
	"github.com/Proton-105/itpomosh-bot/pkg/metrics"
)

const maxFormBytes = 64 << 10

// orderForm is the website contact form.
type orderForm struct {
	Name         string `json:"name" validate:"required,max=100"`
	Phone        string `json:"phone" validate:"required,phone"`
	Message      string `json:"message" validate:"required,max=4000"`
	BusinessType string `json:"business_type" validate:"max=200"`
}

type createOrderResponse struct {
	OrderID int64 `json:"order_id"`
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	var form orderForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		s.log.WarnContext(ctx, "invalid order form body", slog.Any("error", err))
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	form.Name = validation.CleanText(form.Name)
	form.Message = validation.CleanText(form.Message)
	form.BusinessType = validation.CleanText(form.BusinessType)

	if fields := s.check(form); len(fields) > 0 {
		s.log.InfoContext(ctx, "order form rejected", slog.Any("fields", fields))
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Fields: fields})
		return
	}

	phone, _ := validation.NormalizePhone(form.Phone)
	input := domain.NewOrder{
		Name:         form.Name,
		Phone:        phone,
		Task:         form.Message,
		BusinessType: form.BusinessType,
		Source:       domain.SourceWebsite,
	}

	id, err := s.orders.CreateOrder(ctx, input)
	if err != nil {
		s.errors.Handle(ctx, errors.NewStorageError("create website order", err))
		writeError(w, http.StatusInternalServerError, "could not save the order")
		return
	}

	order := s.storedOrder(r, id, input)
	metrics.RecordOrderEvent(string(domain.OrderCreated), string(domain.SourceWebsite))
	if s.notifier != nil {
		s.notifier.OrderEvent(ctx, domain.OrderEvent{Kind: domain.OrderCreated, Order: order})
	}

	s.log.InfoContext(ctx, "website order created", slog.Int64("order_id", id), slog.String("phone", phone))
	writeJSON(w, http.StatusCreated, createOrderResponse{OrderID: id})
}

// check returns a reason per invalid field, keyed by its JSON name.
func (s *Server) check(form orderForm) map[string]string {
	fields := map[string]string{}

	var verrs validator.ValidationErrors
	if err := s.validate.Struct(form); err != nil {
		if !stderrors.As(err, &verrs) {
			fields["form"] = err.Error()
			return fields
		}
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
	}

	if _, bad := fields["message"]; !bad && validation.Length(form.Message) < s.opts.MinTaskLength {
		fields["message"] = "min=" + strconv.Itoa(s.opts.MinTaskLength)
	}
	return fields
}

// storedOrder reads the order back for the notification, falling back to the input.
func (s *Server) storedOrder(r *http.Request, id int64, input domain.NewOrder) domain.Order {
	if stored, err := s.orders.GetOrder(r.Context(), id); err == nil && stored != nil {
		return *stored
	}
	return domain.Order{
		ID:           id,
		Name:         input.Name,
		Phone:        input.Phone,
		BusinessType: input.BusinessType,
		Task:         input.Task,
		Status:       domain.OrderStatusNew,
		Source:       input.Source,
		CreatedAt:    time.Now().UTC(),
	}
}
