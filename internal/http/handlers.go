package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"kassa/internal/domain"
	"kassa/internal/metrics"
	"kassa/internal/repository"
	"kassa/internal/service"
)

// Deps сервисы и инфраструктура, которыми пользуется HTTP-слой
type Deps struct {
	Clients  *service.ClientService
	Products *service.ProductService
	Ledger   *service.StockLedger
	Orders   *service.OrderLifecycle
	Items    *service.OrderItemManager
	Invoices *service.InvoiceService
	Metrics  *metrics.Metrics
	Log      *zap.Logger
}

type Server struct {
	engine *gin.Engine
	deps   Deps
}

func NewServer(deps Deps) *Server {
	r := gin.New()
	r.Use(RequestLogger(deps.Log), Observe(deps.Metrics), gin.Recovery())
	s := &Server{engine: r, deps: deps}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	s.engine.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))

	v1 := s.engine.Group("/api/v1")
	{
		clients := v1.Group("/clients")
		clients.POST("", s.createClient)
		clients.GET(":id", s.getClient)
		clients.PUT(":id", s.updateClient)
		clients.GET("", s.listClients)

		products := v1.Group("/products")
		products.POST("", s.createProduct)
		products.GET(":id", s.getProduct)
		products.PUT(":id", s.updateProduct)
		products.DELETE(":id", s.deleteProduct)
		products.GET("", s.listProducts)

		inventory := v1.Group("/inventory/:productId")
		inventory.GET("", s.getInventory)
		inventory.GET("movements", s.listMovements)
		inventory.POST("add", s.addStock)
		inventory.POST("remove", s.removeStock)
		inventory.PUT("", s.setStock)

		orders := v1.Group("/orders")
		orders.POST("", s.createOrder)
		orders.GET(":id", s.getOrder)
		orders.POST(":id/cancel", s.cancelOrder)
		orders.PUT(":id/status", s.updateOrderStatus)
		orders.POST(":id/items", s.addOrderItem)
		orders.POST(":id/invoice", s.issueInvoice)
		orders.GET(":id/invoice", s.getOrderInvoice)

		v1.PUT("/order-items/:id", s.updateOrderItem)
		v1.DELETE("/order-items/:id", s.deleteOrderItem)

		v1.GET("/invoices/:id", s.getInvoice)
	}
}

// Client handlers
type createClientReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// @Summary Create client
// @Tags clients
// @Accept json
// @Produce json
// @Param input body createClientReq true "Client"
// @Success 201 {object} domain.Client
// @Failure 400 {object} map[string]string
// @Router /clients [post]
func (s *Server) createClient(c *gin.Context) {
	var req createClientReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	cl, err := s.deps.Clients.Create(c, domain.Client{Name: req.Name, Email: req.Email})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cl)
}

// @Summary Get client by id
// @Tags clients
// @Produce json
// @Param id path int true "Client ID"
// @Success 200 {object} domain.Client
// @Failure 404 {object} map[string]string
// @Router /clients/{id} [get]
func (s *Server) getClient(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	cl, err := s.deps.Clients.GetByID(c, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cl)
}

type updateClientReq struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Active bool   `json:"active"`
}

// @Summary Update client
// @Tags clients
// @Accept json
// @Produce json
// @Param id path int true "Client ID"
// @Param input body updateClientReq true "Update"
// @Success 200 {object} domain.Client
// @Failure 404 {object} map[string]string
// @Router /clients/{id} [put]
func (s *Server) updateClient(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req updateClientReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	cl, err := s.deps.Clients.Update(c, domain.Client{ID: id, Name: req.Name, Email: req.Email, Active: req.Active})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cl)
}

// @Summary List clients
// @Tags clients
// @Produce json
// @Success 200 {array} domain.Client
// @Router /clients [get]
func (s *Server) listClients(c *gin.Context) {
	list, err := s.deps.Clients.List(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Product handlers
type createProductReq struct {
	ClientID int64           `json:"client_id"`
	Name     string          `json:"name"`
	SKU      string          `json:"sku"`
	Price    decimal.Decimal `json:"price"`
	Stock    int64           `json:"stock"`
}

// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Param input body createProductReq true "Product"
// @Success 201 {object} domain.Product
// @Failure 400 {object} map[string]string
// @Router /products [post]
func (s *Server) createProduct(c *gin.Context) {
	var req createProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := s.deps.Products.Create(c, domain.Product{
		ClientID: req.ClientID,
		Name:     req.Name,
		SKU:      req.SKU,
		Price:    req.Price,
	}, req.Stock)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// @Summary Get product by id
// @Tags products
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} domain.Product
// @Failure 404 {object} map[string]string
// @Router /products/{id} [get]
func (s *Server) getProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	p, err := s.deps.Products.GetByID(c, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type updateProductReq struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// @Summary Update product
// @Tags products
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param input body updateProductReq true "Update"
// @Success 200 {object} domain.Product
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /products/{id} [put]
func (s *Server) updateProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req updateProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := s.deps.Products.Update(c, domain.Product{ID: id, Name: req.Name, Price: req.Price})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Delete product
// @Tags products
// @Param id path int true "Product ID"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /products/{id} [delete]
func (s *Server) deleteProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := s.deps.Products.Delete(c, id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List products
// @Tags products
// @Produce json
// @Param q query string false "Name contains"
// @Param client_id query int false "Owning client"
// @Param min_price query number false "Min price"
// @Param max_price query number false "Max price"
// @Success 200 {array} domain.Product
// @Router /products [get]
func (s *Server) listProducts(c *gin.Context) {
	var f repository.ProductFilter
	if q := c.Query("q"); q != "" {
		f.NameSubstring = q
	}
	if v := c.Query("client_id"); v != "" {
		if x, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.ClientID = &x
		}
	}
	if v := c.Query("min_price"); v != "" {
		if x, err := decimal.NewFromString(v); err == nil {
			f.MinPrice = &x
		}
	}
	if v := c.Query("max_price"); v != "" {
		if x, err := decimal.NewFromString(v); err == nil {
			f.MaxPrice = &x
		}
	}
	list, err := s.deps.Products.List(c, f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Inventory handlers
type stockQtyReq struct {
	Quantity int64 `json:"quantity"`
}

// @Summary Get inventory by product
// @Tags inventory
// @Produce json
// @Param productId path int true "Product ID"
// @Success 200 {object} domain.InventoryRecord
// @Failure 404 {object} map[string]string
// @Router /inventory/{productId} [get]
func (s *Server) getInventory(c *gin.Context) {
	id, err := parseID(c.Param("productId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	rec, err := s.deps.Ledger.GetByProductID(c, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// @Summary List stock movements
// @Tags inventory
// @Produce json
// @Param productId path int true "Product ID"
// @Success 200 {array} domain.StockMovement
// @Failure 404 {object} map[string]string
// @Router /inventory/{productId}/movements [get]
func (s *Server) listMovements(c *gin.Context) {
	id, err := parseID(c.Param("productId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	list, err := s.deps.Ledger.Movements(c, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Add stock
// @Tags inventory
// @Accept json
// @Produce json
// @Param productId path int true "Product ID"
// @Param input body stockQtyReq true "Quantity"
// @Success 200 {object} domain.InventoryRecord
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /inventory/{productId}/add [post]
func (s *Server) addStock(c *gin.Context) {
	id, err := parseID(c.Param("productId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req stockQtyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	rec, err := s.deps.Ledger.AddStock(c, id, req.Quantity)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// @Summary Remove stock
// @Tags inventory
// @Accept json
// @Produce json
// @Param productId path int true "Product ID"
// @Param input body stockQtyReq true "Quantity"
// @Success 200 {object} domain.InventoryRecord
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /inventory/{productId}/remove [post]
func (s *Server) removeStock(c *gin.Context) {
	id, err := parseID(c.Param("productId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req stockQtyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	rec, err := s.deps.Ledger.RemoveStock(c, id, req.Quantity)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// @Summary Set stock
// @Tags inventory
// @Accept json
// @Produce json
// @Param productId path int true "Product ID"
// @Param input body stockQtyReq true "Quantity"
// @Success 200 {object} domain.InventoryRecord
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /inventory/{productId} [put]
func (s *Server) setStock(c *gin.Context) {
	id, err := parseID(c.Param("productId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req stockQtyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	rec, err := s.deps.Ledger.SetStock(c, id, req.Quantity)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Order handlers
type orderItemReq struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type createOrderReq struct {
	ClientID int64          `json:"client_id"`
	Items    []orderItemReq `json:"items"`
}

// @Summary Create order
// @Tags orders
// @Accept json
// @Produce json
// @Param input body createOrderReq true "Order"
// @Success 201 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /orders [post]
func (s *Server) createOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	items := make([]service.ItemRequest, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	o, err := s.deps.Orders.CreateOrder(c, req.ClientID, items)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.deps.Metrics.OrdersCreated.Inc()
	c.JSON(http.StatusCreated, o)
}

// @Summary Get order by id
// @Tags orders
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 404 {object} map[string]string
// @Router /orders/{id} [get]
func (s *Server) getOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	o, err := s.deps.Orders.GetOrder(c, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Cancel order
// @Tags orders
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /orders/{id}/cancel [post]
func (s *Server) cancelOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	o, err := s.deps.Orders.CancelOrder(c, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.deps.Metrics.OrdersCancelled.Inc()
	c.JSON(http.StatusOK, o)
}

type updateStatusReq struct {
	Status string `json:"status"`
}

// @Summary Update order status
// @Tags orders
// @Accept json
// @Produce json
// @Param id path int true "Order ID"
// @Param input body updateStatusReq true "New status"
// @Success 200 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /orders/{id}/status [put]
func (s *Server) updateOrderStatus(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	o, err := s.deps.Orders.UpdateStatus(c, id, domain.OrderStatus(req.Status))
	if err != nil {
		s.fail(c, err)
		return
	}
	// смена статуса на CANCELLED — та же отмена, что и /cancel
	if o.Status == domain.OrderStatusCancelled {
		s.deps.Metrics.OrdersCancelled.Inc()
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Add order item
// @Tags orders
// @Accept json
// @Produce json
// @Param id path int true "Order ID"
// @Param input body orderItemReq true "Item"
// @Success 201 {object} domain.OrderItem
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /orders/{id}/items [post]
func (s *Server) addOrderItem(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req orderItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	item, err := s.deps.Items.AddItem(c, id, req.ProductID, req.Quantity)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

type updateItemReq struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// @Summary Update order item
// @Tags orders
// @Accept json
// @Produce json
// @Param id path int true "Item ID"
// @Param input body updateItemReq true "Item"
// @Success 200 {object} domain.OrderItem
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /order-items/{id} [put]
func (s *Server) updateOrderItem(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req updateItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	item, err := s.deps.Items.UpdateItem(c, id, req.ProductID, req.Quantity, req.Price)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// @Summary Delete order item
// @Tags orders
// @Param id path int true "Item ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /order-items/{id} [delete]
func (s *Server) deleteOrderItem(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := s.deps.Items.DeleteItem(c, id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Invoice handlers

// @Summary Issue invoice for order
// @Tags invoices
// @Produce json
// @Param id path int true "Order ID"
// @Success 201 {object} domain.Invoice
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /orders/{id}/invoice [post]
func (s *Server) issueInvoice(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	inv, err := s.deps.Invoices.IssueInvoice(c, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

// @Summary Get invoice for order
// @Tags invoices
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} domain.Invoice
// @Failure 404 {object} map[string]string
// @Router /orders/{id}/invoice [get]
func (s *Server) getOrderInvoice(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	inv, err := s.deps.Invoices.GetByOrder(c, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// @Summary Get invoice by id
// @Tags invoices
// @Produce json
// @Param id path int true "Invoice ID"
// @Success 200 {object} domain.Invoice
// @Failure 404 {object} map[string]string
// @Router /invoices/{id} [get]
func (s *Server) getInvoice(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	inv, err := s.deps.Invoices.GetByID(c, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func (s *Server) fail(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrInsufficientStock) {
		s.deps.Metrics.StockRejections.Inc()
	}
	c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrClientInactive),
		errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyCancelled),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
