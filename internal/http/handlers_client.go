package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/denizrest/selforder/internal/adapters/mongo"
	"github.com/denizrest/selforder/internal/adapters/pg"
	"github.com/denizrest/selforder/internal/domain"
	"github.com/denizrest/selforder/internal/idempotency"
	"github.com/denizrest/selforder/internal/observability"
)

// language resolves the menu language for the request: explicit query
// parameter first, configured default otherwise.
func (h *Handlers) language(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return lang
	}
	return h.cfg.DefaultLanguage
}

func (h *Handlers) GetMenu(w http.ResponseWriter, r *http.Request) {
	lang := h.language(r)

	filter := mongo.MenuFilter{
		Search:   r.URL.Query().Get("search"),
		Language: lang,
	}
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, domain.ErrInvalidInput, "invalid category_id")
			return
		}
		filter.CategoryID = &id
	}

	var categories []domain.Category
	var dishes []domain.Dish
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		categories, err = h.catalog.Categories(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		dishes, err = h.catalog.Dishes(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		respondError(w, err, "failed to load menu")
		return
	}

	catDTOs := make([]map[string]interface{}, 0, len(categories))
	for _, c := range categories {
		catDTOs = append(catDTOs, map[string]interface{}{
			"id":    c.ID,
			"name":  c.Name.Get(lang),
			"count": c.DishCount,
		})
	}
	dishDTOs := make([]map[string]interface{}, 0, len(dishes))
	for _, d := range dishes {
		dishDTOs = append(dishDTOs, map[string]interface{}{
			"id":          d.ID,
			"name":        d.Name.Get(lang),
			"description": d.Description.Get(lang),
			"price":       d.Price,
			"image_url":   d.ImageURL,
			"category_id": d.CategoryID,
			"available":   d.Available,
		})
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"categories": catDTOs,
		"dishes":     dishDTOs,
	})
}

func (h *Handlers) GetTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.repo.ListTables(r.Context())
	if err != nil {
		respondError(w, err, "failed to load tables")
		return
	}

	dtos := make([]map[string]interface{}, 0, len(tables))
	for _, t := range tables {
		dtos = append(dtos, map[string]interface{}{
			"id":           t.ID,
			"table_number": t.TableNumber,
			"seats":        t.Seats,
			"status":       t.Status,
			"is_available": t.IsAvailable(),
		})
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{"tables": dtos})
}

func (h *Handlers) VerifyTablePIN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TableNumber int    `json:"table_number"`
		PIN         string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.ErrInvalidInput, "invalid request body")
		return
	}

	if err := h.repo.VerifyTablePIN(r.Context(), req.TableNumber, req.PIN); err != nil {
		if errors.Is(err, domain.ErrPINInvalid) {
			respondError(w, err, "Неверный PIN-код")
			return
		}
		respondError(w, err, "table not found")
		return
	}
	respondMessage(w, http.StatusOK, "PIN верный")
}

func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	doc, err := h.settings.Get(r.Context())
	if err != nil {
		respondError(w, err, "failed to load settings")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"service_charge_percent": doc.ServiceChargePercent,
		"service_charge_enabled": doc.ServiceChargeEnabled,
		"order_cancel_timeout":   doc.OrderCancelTimeout,
		"languages":              doc.Languages,
		"default_language":       doc.DefaultLanguage,
		"table_pin_enabled":      doc.TablePINEnabled,
		"currency":               doc.Currency,
	})
}

// CreateOrder builds the order from the submitted cart. Prices are always
// re-read from the catalog; the client totals are advisory only.
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if key != "" {
		existing, err := h.idemp.Get(r.Context(), key)
		if err != nil {
			respondError(w, err, "idempotency check failed")
			return
		}
		if existing != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(existing.Status)
			w.Write(existing.Result)
			return
		}
	}

	var req domain.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.ErrInvalidInput, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		respondError(w, domain.ErrEmptyCart, "Корзина пуста")
		return
	}
	if req.TableNumber <= 0 {
		respondError(w, domain.ErrNoTableSelected, "Выберите столик")
		return
	}

	table, err := h.repo.GetTableByNumber(r.Context(), req.TableNumber)
	if err != nil {
		respondError(w, err, "table not found")
		return
	}

	settings, err := h.settings.Get(r.Context())
	if err != nil {
		respondError(w, err, "failed to load settings")
		return
	}

	lang := req.Language
	if lang == "" {
		lang = h.cfg.DefaultLanguage
	}

	var items []domain.OrderItem
	var subtotal float64
	for _, line := range req.Items {
		if line.Quantity <= 0 {
			respondError(w, domain.ErrInvalidInput, "invalid item quantity")
			return
		}
		dish, err := h.catalog.Dish(r.Context(), line.DishID)
		if err != nil {
			respondError(w, err, "dish not found")
			return
		}
		if !dish.Available {
			respondError(w, domain.ErrNotFound, "dish not available")
			return
		}
		items = append(items, domain.OrderItem{
			DishID:   dish.ID,
			Name:     dish.Name.Get(lang),
			Price:    dish.Price,
			Quantity: line.Quantity,
		})
		subtotal += dish.Price * float64(line.Quantity)
	}

	discountPercent := 0.0
	if req.BonusCard != "" {
		card, err := h.repo.GetBonusCard(r.Context(), req.BonusCard)
		if err != nil {
			respondError(w, err, "Бонусная карта недействительна")
			return
		}
		if !card.Valid(time.Now()) {
			respondError(w, domain.ErrCardInvalid, "Бонусная карта недействительна")
			return
		}
		discountPercent = card.DiscountPercent
	}

	totals := domain.ComputeTotals(subtotal, settings.ServiceChargePercent, settings.ServiceChargeEnabled, discountPercent)
	order := domain.NewOrder(*table, items, totals, req.BonusCard, lang, h.cfg.ConfirmWindow, time.Now())

	err = h.repo.WithTx(r.Context(), func(tx pgx.Tx) error {
		if err := h.repo.CreateOrder(r.Context(), tx, order); err != nil {
			return err
		}
		payload, _ := json.Marshal(map[string]interface{}{
			"order_id":     order.ID,
			"table_number": order.TableNumber,
			"total":        order.Total,
			"status":       order.Status,
		})
		return h.repo.InsertOutbox(r.Context(), tx, pg.OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "order",
			AggregateID:   order.ID,
			EventType:     "order.created",
			Payload:       payload,
			DedupeKey:     "order.created:" + order.ID.String(),
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrActiveOrderExists) {
			respondError(w, err, "За этим столом уже есть активный заказ")
			return
		}
		if errors.Is(err, domain.ErrSerializationFailure) {
			respondError(w, err, "conflict, try again")
			return
		}
		respondError(w, err, "failed to create order")
		return
	}

	observability.OrdersPlaced.Inc()
	if err := h.audit.LogOrder(r.Context(), order); err != nil {
		h.logger.Error("failed to audit order", err)
	}

	data := respondSuccess(w, http.StatusCreated, map[string]interface{}{
		"order_id":         order.ID,
		"table_number":     order.TableNumber,
		"subtotal":         order.Subtotal,
		"service_charge":   order.ServiceCharge,
		"discount":         order.Discount,
		"total":            order.Total,
		"confirm_deadline": order.ConfirmDeadline.Format(time.RFC3339),
	})
	if key != "" {
		if err := h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data}); err != nil {
			h.logger.Error("failed to store idempotent response", err)
		}
	}
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, domain.ErrInvalidInput, "invalid order id")
		return
	}

	err = h.repo.WithTx(r.Context(), func(tx pgx.Tx) error {
		if err := h.repo.CancelOrder(r.Context(), tx, orderID, time.Now()); err != nil {
			return err
		}
		payload, _ := json.Marshal(map[string]interface{}{
			"order_id": orderID,
			"status":   domain.OrderCancelled,
		})
		return h.repo.InsertOutbox(r.Context(), tx, pg.OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "order",
			AggregateID:   orderID,
			EventType:     "order.cancelled",
			Payload:       payload,
			DedupeKey:     "order.cancelled:" + orderID.String(),
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrWindowClosed) {
			respondError(w, err, "Время отмены заказа истекло")
			return
		}
		respondError(w, err, "failed to cancel order")
		return
	}

	observability.OrdersCancelled.Inc()
	respondMessage(w, http.StatusOK, "Заказ отменен")
}

func (h *Handlers) CallWaiter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TableNumber int `json:"table_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.ErrInvalidInput, "invalid request body")
		return
	}

	table, err := h.repo.GetTableByNumber(r.Context(), req.TableNumber)
	if err != nil {
		respondError(w, err, "table not found")
		return
	}

	call := domain.WaiterCall{
		ID:          uuid.New(),
		TableID:     table.ID,
		TableNumber: table.TableNumber,
		Status:      domain.CallPending,
		CreatedAt:   time.Now(),
	}
	err = h.repo.WithTx(r.Context(), func(tx pgx.Tx) error {
		if err := h.repo.CreateWaiterCall(r.Context(), tx, call); err != nil {
			return err
		}
		payload, _ := json.Marshal(map[string]interface{}{
			"call_id":      call.ID,
			"table_number": call.TableNumber,
		})
		return h.repo.InsertOutbox(r.Context(), tx, pg.OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "call",
			AggregateID:   call.ID,
			EventType:     "call.created",
			Payload:       payload,
			DedupeKey:     "call.created:" + call.ID.String(),
		})
	})
	if errors.Is(err, domain.ErrConflict) {
		// A pending call for the table already exists; pressing the button
		// again does not queue a second one.
		respondMessage(w, http.StatusOK, "Официант уже вызван")
		return
	}
	if err != nil {
		respondError(w, err, "failed to call waiter")
		return
	}

	if err := h.audit.LogWaiterCall(r.Context(), call); err != nil {
		h.logger.Error("failed to audit waiter call", err)
	}
	respondMessage(w, http.StatusOK, "Официант вызван")
}

func (h *Handlers) CheckBonusCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardNumber string `json:"card_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.ErrInvalidInput, "invalid request body")
		return
	}

	card, err := h.repo.GetBonusCard(r.Context(), req.CardNumber)
	if err != nil {
		respondError(w, err, "Бонусная карта недействительна")
		return
	}
	if !card.Valid(time.Now()) {
		respondError(w, domain.ErrCardInvalid, "Бонусная карта недействительна")
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"card_number":      card.CardNumber,
		"discount_percent": card.DiscountPercent,
		"is_active":        card.IsActive,
	})
}
