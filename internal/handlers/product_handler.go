package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"catalog/internal/services"
	"catalog/internal/validation"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hashicorp/go-hclog"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service        *services.ProductService
	validate       *validator.Validate
	paginationMode services.PaginationMode
	logger         hclog.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, mode services.PaginationMode, logger hclog.Logger) *ProductHandler {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	return &ProductHandler{
		service:        service,
		validate:       v,
		paginationMode: mode,
		logger:         logger,
	}
}

// RegisterRoutes registers the product routes with the Fiber router.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Post("/", h.HandleCreateProduct)
	productRoutes.Get("/", h.HandleListProducts)
}

// CreateProductRequest is the body of POST /products.
type CreateProductRequest struct {
	Product map[string]interface{} `json:"product" validate:"required"`
}

// HandleCreateProduct validates and stores a new product.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var req CreateProductRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("Error parsing create product request body", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return h.errorResponse(c, err, "Could not create product")
		}
		errorMessages := make(map[string]string)
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errorMessages,
		})
	}

	product, err := h.service.CreateProduct(c.UserContext(), req.Product)
	if err != nil {
		return h.errorResponse(c, err, "Could not create product")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"product": product,
	})
}

// HandleListProducts returns a page of products and the total count as a two element array.
func (h *ProductHandler) HandleListProducts(c *fiber.Ctx) error {
	p, err := services.ParsePagination(c.Query("limit"), c.Query("offset"), h.paginationMode)
	if err != nil {
		return h.errorResponse(c, err, "Could not retrieve products")
	}

	res, err := h.service.ListProducts(c.UserContext(), p)
	if err != nil {
		return h.errorResponse(c, err, "Could not retrieve products")
	}

	return c.JSON([]interface{}{res.Rows, res.Total})
}

func (h *ProductHandler) errorResponse(c *fiber.Ctx, err error, message string) error {
	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  verr.Messages(),
		})
	}

	h.logger.Error(message, "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": message,
		"error":   err.Error(),
	})
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}
