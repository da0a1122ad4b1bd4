package services

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"Access-Telegram-bot/internal/db"
)

// Синонимы полей у разных платёжных систем (Prodamus, Tilda и т.п.)
var (
	orderIDKeys = []string{"order_id", "orderId", "order", "payment_id"}
	emailKeys   = []string{"email", "customer_email", "client_email", "buyer_email"}
	phoneKeys   = []string{"phone", "phone_number", "customer_phone", "client_phone", "buyer_phone", "telephone", "tel"}
	statusKeys  = []string{"status", "payment_status", "paymentStatus"}
	productKeys = []string{"product_name", "product", "title", "name"}
	createdKeys = []string{"created_at", "createdAt", "date", "created"}
)

var statusVocabulary = map[string]string{
	"success":   db.StatusPaid,
	"succeeded": db.StatusPaid,
	"paid":      db.StatusPaid,
	"completed": db.StatusPaid,
	"cancelled": db.StatusCancelled,
	"canceled":  db.StatusCancelled,
	"failed":    db.StatusFailed,
	"pending":   db.StatusPending,
}

var timestampLayouts = []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05"}

// WebhookPayment: нормализованное уведомление об оплате
type WebhookPayment struct {
	OrderID     string `validate:"required"`
	Email       string `validate:"required_without=Phone"`
	Phone       string `validate:"required_without=Email"`
	Status      string
	ProductName string
	CreatedAt   time.Time
}

// NormalizeStatus приводит статус к словарю; пустой статус считается оплатой, незнакомый сохраняется как есть.
func NormalizeStatus(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return db.StatusPaid
	}
	if mapped, ok := statusVocabulary[v]; ok {
		return mapped
	}
	return v
}

// ParseTimestamp понимает два фиксированных формата, иначе возвращает текущее время
func ParseTimestamp(value string, now time.Time) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t
		}
	}
	return now.UTC()
}

// NormalizeWebhook собирает поля оплаты из произвольного набора ключей.
func NormalizeWebhook(payload map[string]interface{}, now time.Time) WebhookPayment {
	return WebhookPayment{
		OrderID:     firstValue(payload, orderIDKeys),
		Email:       firstValue(payload, emailKeys),
		Phone:       NormalizePhone(firstValue(payload, phoneKeys)),
		Status:      NormalizeStatus(firstValue(payload, statusKeys)),
		ProductName: firstValue(payload, productKeys),
		CreatedAt:   ParseTimestamp(firstValue(payload, createdKeys), now),
	}
}

func firstValue(payload map[string]interface{}, keys []string) string {
	for _, k := range keys {
		v, ok := payload[k]
		if !ok || v == nil {
			continue
		}
		if text := strings.TrimSpace(stringify(v)); text != "" {
			return text
		}
	}
	return ""
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case map[string]interface{}, []interface{}:
		raw, _ := json.Marshal(t)
		return string(raw)
	default:
		return fmt.Sprint(t)
	}
}

type WebhookParams struct {
	DB      *gorm.DB
	Log     *zap.Logger
	Token   string
	Metrics *Metrics
	Now     func() time.Time
}

// WebhookHandler принимает уведомления об оплате и пишет их в таблицу payments.
type WebhookHandler struct {
	db       *gorm.DB
	log      *zap.Logger
	token    string
	metrics  *Metrics
	now      func() time.Time
	validate *validator.Validate
}

func NewWebhookHandler(p WebhookParams) *WebhookHandler {
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Log == nil {
		p.Log = zap.NewNop()
	}
	return &WebhookHandler{
		db:       p.DB,
		log:      p.Log,
		token:    p.Token,
		metrics:  p.Metrics,
		now:      p.Now,
		validate: validator.New(),
	}
}

// Register вешает обработчик на пути /webhooks/{prodamus,tilda} и варианты с токеном в пути.
func (h *WebhookHandler) Register(r gin.IRouter) {
	for _, provider := range []string{"prodamus", "tilda"} {
		r.POST("/webhooks/"+provider, h.Handle)
		r.POST("/webhooks/"+provider+"/:token", h.Handle)
	}
}

func (h *WebhookHandler) Handle(c *gin.Context) {
	requestID := uuid.NewString()
	c.Header("X-Request-ID", requestID)
	log := h.log.With(zap.String("request_id", requestID), zap.String("path", c.FullPath()))

	payload := readPayload(c)
	log.Info("webhook payload received", zap.Any("payload", payload))

	if !h.authorized(c, payload) {
		h.metrics.Webhook("unauthorized")
		log.Warn("webhook unauthorized")
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "unauthorized"})
		return
	}

	pay := NormalizeWebhook(payload, h.now())
	if err := h.validate.Struct(pay); err != nil {
		h.metrics.Webhook("invalid")
		log.Warn("webhook rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "missing order_id or email/phone"})
		return
	}

	saved, created, err := db.UpsertPayment(h.db.WithContext(c.Request.Context()), db.PaymentUpsert{
		OrderID:     pay.OrderID,
		Email:       pay.Email,
		Phone:       pay.Phone,
		Status:      pay.Status,
		ProductName: pay.ProductName,
		CreatedAt:   pay.CreatedAt,
	})
	if err != nil {
		h.metrics.Webhook("error")
		log.Error("webhook upsert failed", zap.String("order_id", pay.OrderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "storage error"})
		return
	}
	h.metrics.Webhook("ok")
	log.Info("payment recorded",
		zap.String("order_id", saved.OrderID),
		zap.String("status", saved.Status),
		zap.Bool("created", created))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// authorized: без настроенного токена endpoint открыт; иначе достаточно совпадения
// в заголовке, query, теле или пути.
func (h *WebhookHandler) authorized(c *gin.Context, payload map[string]interface{}) bool {
	if h.token == "" {
		return true
	}
	candidates := []string{
		c.GetHeader("X-Webhook-Token"),
		c.Query("token"),
		strings.TrimSpace(stringify(payload["token"])),
		c.Param("token"),
	}
	for _, candidate := range candidates {
		if candidate != "" && subtle.ConstantTimeCompare([]byte(candidate), []byte(h.token)) == 1 {
			return true
		}
	}
	return false
}

// readPayload читает JSON или x-www-form-urlencoded. Нераспознанное тело даёт пустой payload.
func readPayload(c *gin.Context) map[string]interface{} {
	raw, err := c.GetRawData()
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return map[string]interface{}{}
	}
	if strings.HasPrefix(c.ContentType(), "application/json") {
		return decodeJSONPayload(raw)
	}
	text := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
		if values, err := url.ParseQuery(text); err == nil && len(values) > 0 {
			payload := make(map[string]interface{}, len(values))
			for k, v := range values {
				if len(v) > 0 {
					payload[k] = v[len(v)-1]
				}
			}
			return payload
		}
	}
	return decodeJSONPayload(raw)
}

func decodeJSONPayload(raw []byte) map[string]interface{} {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var data interface{}
	if err := dec.Decode(&data); err != nil {
		return map[string]interface{}{}
	}
	if obj, ok := data.(map[string]interface{}); ok {
		return obj
	}
	return map[string]interface{}{"data": data}
}
