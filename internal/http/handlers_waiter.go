package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/denizrest/selforder/internal/adapters/mongo"
	"github.com/denizrest/selforder/internal/adapters/pg"
	"github.com/denizrest/selforder/internal/domain"
)

func (h *Handlers) DashboardStats(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats, err := h.repo.DashboardStats(r.Context(), dayStart)
	if err != nil {
		respondError(w, err, "failed to load stats")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"active_orders":   stats.ActiveOrders,
		"pending_calls":   stats.PendingCalls,
		"occupied_tables": stats.OccupiedTables,
		"total_tables":    stats.TotalTables,
		"revenue_today":   stats.RevenueToday,
	})
}

func orderDTO(order domain.Order) map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]interface{}{
			"dish_id":  item.DishID,
			"name":     item.Name,
			"price":    item.Price,
			"quantity": item.Quantity,
		})
	}
	return map[string]interface{}{
		"id":               order.ID,
		"table_number":     order.TableNumber,
		"status":           order.Status,
		"status_color":     order.Status.Color(),
		"status_icon":      order.Status.Icon(),
		"items":            items,
		"subtotal":         order.Subtotal,
		"service_charge":   order.ServiceCharge,
		"discount":         order.Discount,
		"total":            order.Total,
		"created_at":       order.CreatedAt.Format(time.RFC3339),
		"confirm_deadline": order.ConfirmDeadline.Format(time.RFC3339),
		"auto_confirmed":   order.AutoConfirmed,
	}
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	var status *domain.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := domain.ParseOrderStatus(raw)
		if err != nil {
			respondError(w, err, "invalid status filter")
			return
		}
		status = &st
	}

	orders, err := h.repo.ListOrders(r.Context(), status, 100)
	if err != nil {
		respondError(w, err, "failed to list orders")
		return
	}

	dtos := make([]map[string]interface{}, 0, len(orders))
	for _, order := range orders {
		dtos = append(dtos, orderDTO(order))
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{"orders": dtos})
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.ErrInvalidInput, "invalid order id")
		return
	}

	order, err := h.repo.GetOrder(r.Context(), orderID)
	if err != nil {
		respondError(w, err, "order not found")
		return
	}
	respondSuccess(w, http.StatusOK, orderDTO(*order))
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.ErrInvalidInput, "invalid order id")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.ErrInvalidInput, "invalid request body")
		return
	}
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		respondError(w, err, "unknown status")
		return
	}

	err = h.repo.WithTx(r.Context(), func(tx pgx.Tx) error {
		if err := h.repo.UpdateOrderStatus(r.Context(), tx, orderID, status, time.Now()); err != nil {
			return err
		}
		payload, _ := json.Marshal(map[string]interface{}{
			"order_id": orderID,
			"status":   status,
		})
		return h.repo.InsertOutbox(r.Context(), tx, pg.OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "order",
			AggregateID:   orderID,
			EventType:     "order.updated",
			Payload:       payload,
			DedupeKey:     "order.updated:" + orderID.String() + ":" + string(status),
		})
	})
	if err != nil {
		respondError(w, err, "failed to update order")
		return
	}

	if err := h.audit.LogStatusChange(r.Context(), orderID, status, false); err != nil {
		h.logger.Error("failed to audit status change", err)
	}
	respondMessage(w, http.StatusOK, "Статус обновлен")
}

// PrintOrder confirms the order and sends it to the kitchen printer. The
// diner-side confirm button and the auto-confirm both land here.
func (h *Handlers) PrintOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.ErrInvalidInput, "invalid order id")
		return
	}

	err = h.repo.ConfirmOrder(r.Context(), orderID, false, time.Now())
	if err != nil && !errors.Is(err, domain.ErrConflict) {
		// Already-confirmed orders reprint without a status change.
		respondError(w, err, "failed to confirm order")
		return
	}

	if err == nil {
		err = h.repo.WithTx(r.Context(), func(tx pgx.Tx) error {
			payload, _ := json.Marshal(map[string]interface{}{
				"order_id": orderID,
				"status":   domain.OrderConfirmed,
			})
			return h.repo.InsertOutbox(r.Context(), tx, pg.OutboxRecord{
				ID:            uuid.New(),
				AggregateType: "order",
				AggregateID:   orderID,
				EventType:     "order.updated",
				Payload:       payload,
				DedupeKey:     "order.confirmed:" + orderID.String(),
			})
		})
		if err != nil {
			h.logger.WithField("order_id", orderID).Error("failed to enqueue order.updated event", err)
		}
	}

	respondMessage(w, http.StatusOK, "Заказ отправлен на печать")
}

func (h *Handlers) ListCalls(w http.ResponseWriter, r *http.Request) {
	var status *domain.CallStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := domain.ParseCallStatus(raw)
		if err != nil {
			respondError(w, err, "invalid status filter")
			return
		}
		status = &st
	}

	calls, err := h.repo.ListWaiterCalls(r.Context(), status)
	if err != nil {
		respondError(w, err, "failed to list calls")
		return
	}

	dtos := make([]map[string]interface{}, 0, len(calls))
	for _, call := range calls {
		dto := map[string]interface{}{
			"id":           call.ID,
			"table_number": call.TableNumber,
			"status":       call.Status,
			"status_color": call.Status.Color(),
			"status_icon":  call.Status.Icon(),
			"created_at":   call.CreatedAt.Format(time.RFC3339),
		}
		if call.RespondedAt != nil {
			dto["responded_at"] = call.RespondedAt.Format(time.RFC3339)
		}
		dtos = append(dtos, dto)
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{"calls": dtos})
}

func (h *Handlers) RespondCall(w http.ResponseWriter, r *http.Request) {
	callID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.ErrInvalidInput, "invalid call id")
		return
	}

	var req struct {
		WaiterID uuid.UUID `json:"waiter_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.ErrInvalidInput, "invalid request body")
		return
	}

	if err := h.repo.RespondWaiterCall(r.Context(), callID, req.WaiterID, time.Now()); err != nil {
		respondError(w, err, "failed to respond to call")
		return
	}

	err = h.repo.WithTx(r.Context(), func(tx pgx.Tx) error {
		payload, _ := json.Marshal(map[string]interface{}{
			"call_id": callID,
			"status":  domain.CallResponded,
		})
		return h.repo.InsertOutbox(r.Context(), tx, pg.OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "call",
			AggregateID:   callID,
			EventType:     "call.updated",
			Payload:       payload,
			DedupeKey:     "call.updated:" + callID.String(),
		})
	})
	if err != nil {
		h.logger.WithField("call_id", callID).Error("failed to enqueue call.updated event", err)
	}

	respondMessage(w, http.StatusOK, "Вызов принят")
}

func (h *Handlers) ListWaiterTables(w http.ResponseWriter, r *http.Request) {
	h.GetTables(w, r)
}

func (h *Handlers) StartShift(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WaiterID uuid.UUID `json:"waiter_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.ErrInvalidInput, "invalid request body")
		return
	}

	shift, err := h.repo.StartShift(r.Context(), req.WaiterID, time.Now())
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			respondError(w, err, "Смена уже начата")
			return
		}
		respondError(w, err, "failed to start shift")
		return
	}
	respondSuccess(w, http.StatusCreated, map[string]interface{}{
		"shift_id":   shift.ID,
		"start_time": shift.StartTime.Format(time.RFC3339),
	})
}

func (h *Handlers) EndShift(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WaiterID uuid.UUID `json:"waiter_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.ErrInvalidInput, "invalid request body")
		return
	}

	if err := h.repo.EndShift(r.Context(), req.WaiterID, time.Now()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			respondError(w, err, "Нет активной смены")
			return
		}
		respondError(w, err, "failed to end shift")
		return
	}
	respondMessage(w, http.StatusOK, "Смена завершена")
}

func (h *Handlers) CurrentShift(w http.ResponseWriter, r *http.Request) {
	waiterID, err := uuid.Parse(r.URL.Query().Get("waiter_id"))
	if err != nil {
		respondError(w, domain.ErrInvalidInput, "invalid waiter_id")
		return
	}

	shift, err := h.repo.CurrentShift(r.Context(), waiterID)
	if errors.Is(err, domain.ErrNotFound) {
		respondSuccess(w, http.StatusOK, map[string]interface{}{"active": false})
		return
	}
	if err != nil {
		respondError(w, err, "failed to load shift")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"active":     true,
		"shift_id":   shift.ID,
		"start_time": shift.StartTime.Format(time.RFC3339),
	})
}

// UpdateSettings saves the restaurant settings and fans a content_updated
// event out to connected diner screens.
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var doc mongo.SettingsDoc
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		respondError(w, domain.ErrInvalidInput, "invalid request body")
		return
	}

	if err := h.settings.Update(r.Context(), doc); err != nil {
		respondError(w, err, "failed to update settings")
		return
	}

	err := h.repo.WithTx(r.Context(), func(tx pgx.Tx) error {
		payload, _ := json.Marshal(map[string]interface{}{"type": "settings"})
		return h.repo.InsertOutbox(r.Context(), tx, pg.OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "content",
			AggregateID:   uuid.New(),
			EventType:     "content.updated",
			Payload:       payload,
			DedupeKey:     uuid.New().String(),
		})
	})
	if err != nil {
		h.logger.Error("failed to enqueue content.updated event", err)
	}

	respondMessage(w, http.StatusOK, "Настройки сохранены")
}
