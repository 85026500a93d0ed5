package handler

import "github.com/gin-gonic/gin"

// Handlers groups the API handlers mounted under the versioned prefix.
type Handlers struct {
	Registration *RegistrationHandler
	Enrollments  *EnrollmentHandler
	Orders       *PaymentOrderHandler
	Receipts     *PaymentReceiptHandler
	Lists        *EnrollmentListHandler
	Catalog      *CatalogHandler
}

// RegisterRoutes mounts every API route on api.
func RegisterRoutes(api gin.IRoutes, h Handlers) {
	api.POST("/enroll-complete", h.Registration.Register)

	api.POST("/enrollments", h.Enrollments.Create)
	api.GET("/enrollments/:id", h.Enrollments.Get)
	api.GET("/students/:id/enrollments", h.Enrollments.ListByStudent)

	api.GET("/payment-orders/quote", h.Orders.Quote)
	api.POST("/payment-orders", h.Orders.Open)
	api.GET("/payment-orders/:id", h.Orders.Get)

	api.POST("/payment-receipts", h.Receipts.Submit)
	api.POST("/payment-receipts/:id/verify", h.Receipts.Verify)
	api.DELETE("/payment-receipts/:id", h.Receipts.Delete)
	api.GET("/payment-receipts/:id/document-url", h.Receipts.DocumentURL)
	api.GET("/payment-receipts/:id/document", h.Receipts.Document)

	api.POST("/enrollment-lists", h.Lists.Create)
	api.GET("/enrollment-lists/:id", h.Lists.Get)
	api.POST("/enrollment-lists/:id/details", h.Lists.AddDetail)
	api.DELETE("/enrollment-lists/:id/details/:detailId", h.Lists.RemoveDetail)

	api.GET("/convocatorias/:id/offerings", h.Catalog.Offerings)
	api.GET("/catalog/:kind/:id/dependents", h.Catalog.Dependents)
}
