package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/billvault/checkout-service/internal/delivery/http/dto/checkout/request"
	"github.com/billvault/checkout-service/internal/delivery/http/dto/checkout/response"
	"github.com/billvault/checkout-service/internal/domain"
	"github.com/billvault/checkout-service/internal/usecase/checkout"
	checkoutdto "github.com/billvault/checkout-service/internal/usecase/dto/checkout"
	"github.com/go-chi/chi/v5"
)

type CheckoutHandler struct {
	Usecase checkout.CheckoutUsecase
}

func NewCheckoutHandler(uc checkout.CheckoutUsecase) *CheckoutHandler {
	return &CheckoutHandler{Usecase: uc}
}

func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/transactions", h.Submit)
	r.Get("/transactions", h.List)
	r.Get("/transactions/{id}", h.GetStatus)
	r.Get("/transactions/{id}/events", h.GetEvents)
	r.Post("/transactions/{id}/confirm-funding", h.ConfirmFunding)
}

func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req request.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	out, err := h.Usecase.Submit(r.Context(), &checkoutdto.SubmitIntentInput{
		UserID:           req.UserID,
		ServiceKind:      domain.ServiceKind(req.ServiceKind),
		FundingMethod:    domain.FundingMethod(req.FundingMethod),
		AmountMinorUnits: req.AmountMinorUnits,
		Payload:          req.Payload,
		ClientToken:      req.ClientToken,
		CallbackURL:      req.CallbackURL,
	})
	if err != nil {
		writeUsecaseError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, toTransactionResponse(out))
}

func (h *CheckoutHandler) ConfirmFunding(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "id")

	var req request.ConfirmFundingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if req.GatewayReference == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "gateway_reference is required")
		return
	}

	out, err := h.Usecase.ConfirmFunding(r.Context(), transactionID, req.GatewayReference)
	if err != nil {
		writeUsecaseError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionResponse(out))
}

func (h *CheckoutHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	out, err := h.Usecase.GetStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeUsecaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(out))
}

func (h *CheckoutHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "user_id is required")
		return
	}

	page := int64(1)
	limit := int64(50)
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}

	filter := domain.TransactionFilter{
		UserID: userID,
		State:  domain.TransactionState(r.URL.Query().Get("state")),
	}
	transactions, total, err := h.Usecase.ListTransactions(filter, page, limit)
	if err != nil {
		writeUsecaseError(w, err)
		return
	}

	resp := response.TransactionListResponse{
		Transactions: make([]response.TransactionSummary, len(transactions)),
		Total:        total,
		Page:         page,
		Limit:        limit,
	}
	for i, tx := range transactions {
		resp.Transactions[i] = response.TransactionSummary{
			TransactionID:    tx.ID,
			ServiceKind:      string(tx.ServiceKind),
			FundingMethod:    string(tx.FundingMethod),
			AmountMinorUnits: tx.AmountMinorUnits,
			State:            string(tx.State),
			CreatedAt:        tx.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CheckoutHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Usecase.GetEvents(chi.URLParam(r, "id"))
	if err != nil {
		writeUsecaseError(w, err)
		return
	}

	resp := make([]response.EventResponse, len(events))
	for i, event := range events {
		resp[i] = response.EventResponse{
			ID:        event.ID,
			FromState: string(event.FromState),
			ToState:   string(event.ToState),
			Actor:     event.Actor,
			Reason:    event.Reason,
			CreatedAt: event.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func toTransactionResponse(out *checkoutdto.TransactionOutput) response.TransactionResponse {
	resp := response.TransactionResponse{
		TransactionID:     out.TransactionID,
		State:             string(out.State),
		RedirectURL:       out.RedirectURL,
		DeliveredArtifact: out.DeliveredArtifact,
	}
	if out.FailureReason != nil {
		resp.FailureCode = out.FailureReason.Code
		resp.FailureMessage = out.FailureReason.Message
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, response.ErrorResponse{Error: msg, Code: code})
}

func writeUsecaseError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Error())
	case errors.Is(err, domain.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "transaction not found")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
