package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"checkout-core/internal/models"
	"checkout-core/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Handler contains HTTP handlers
type Handler struct {
	cartService    *service.CartService
	orderService   *service.OrderService
	paymentService *service.PaymentService
	jwtSecret      string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	cartService *service.CartService,
	orderService *service.OrderService,
	paymentService *service.PaymentService,
	jwtSecret string,
) *Handler {
	return &Handler{
		cartService:    cartService,
		orderService:   orderService,
		paymentService: paymentService,
		jwtSecret:      jwtSecret,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(h.jwtSecret))
	{
		v1.GET("/cart", h.getCart)
		v1.POST("/cart/items", h.addCartItem)
		v1.PUT("/cart/items/:productId", h.setCartItemQuantity)
		v1.DELETE("/cart/items/:productId", h.removeCartItem)
		v1.DELETE("/cart", h.clearCart)

		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/cancel", h.cancelOrder)

		// Checkout and verification carry a tighter bucket than browsing.
		strict := v1.Group("")
		strict.Use(RateLimitMiddleware(rate.Limit(2), 5))
		{
			strict.POST("/orders", h.placeOrder)
			strict.POST("/payments/verify", h.verifyPayment)
		}

		admin := v1.Group("/admin")
		admin.Use(AdminOnly())
		{
			admin.PUT("/orders/:id/status", h.updateOrderStatus)
			admin.PUT("/orders/:id/payment-status", h.updatePaymentStatus)
			admin.POST("/orders/:id/confirm-cod", h.confirmCODPayment)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) getCart(c *gin.Context) {
	user := currentUser(c)

	items, err := h.cartService.GetCart(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

type addCartItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	user := currentUser(c)
	item, err := h.cartService.AddItem(c.Request.Context(), user.ID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) setCartItemQuantity(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	user := currentUser(c)
	if err := h.cartService.SetQuantity(c.Request.Context(), user.ID, productID, req.Quantity); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	user := currentUser(c)
	if err := h.cartService.RemoveItem(c.Request.Context(), user.ID, productID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) clearCart(c *gin.Context) {
	user := currentUser(c)
	if err := h.cartService.Clear(c.Request.Context(), user.ID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	user := currentUser(c)
	resp, err := h.orderService.PlaceOrder(c.Request.Context(), user.ID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orderService.ListOrders(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	result, err := h.orderService.GetOrder(c.Request.Context(), currentUser(c), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req cancelOrderRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "cancelled by customer"
	}

	if err := h.orderService.CancelOrder(c.Request.Context(), currentUser(c), orderID, req.Reason); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type verifyPaymentRequest struct {
	OrderID            int64  `json:"order_id" binding:"required"`
	ProviderOrderRef   string `json:"provider_order_ref" binding:"required"`
	ProviderPaymentRef string `json:"provider_payment_ref" binding:"required"`
	Signature          string `json:"signature" binding:"required"`
}

func (h *Handler) verifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	order, err := h.paymentService.VerifyOnlinePayment(c.Request.Context(),
		req.OrderID, req.ProviderOrderRef, req.ProviderPaymentRef, req.Signature)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id":       order.ID,
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
	})
}

type updateStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.orderService.UpdateOrderStatus(c.Request.Context(), currentUser(c), orderID, req.Status); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type updatePaymentStatusRequest struct {
	PaymentStatus models.PaymentStatus `json:"payment_status" binding:"required"`
}

func (h *Handler) updatePaymentStatus(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req updatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.orderService.UpdatePaymentStatusAdmin(c.Request.Context(), currentUser(c), orderID, req.PaymentStatus); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) confirmCODPayment(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	if err := h.paymentService.ConfirmCODPayment(c.Request.Context(), orderID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// respondError maps the error taxonomy onto HTTP statuses. Signature
// failures deliberately answer with a generic message: internal verification
// detail never reaches the client.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "cart is empty"})
	case errors.Is(err, models.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be at least 1"})
	case errors.Is(err, models.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
	case errors.Is(err, models.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, models.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment could not be verified, contact support"})
	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, models.ErrInvalidStatus):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflicting concurrent update"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
