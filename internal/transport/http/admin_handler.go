package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) adminStatistics(c *gin.Context) {
	stats, err := s.queries.Statistics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{
		Success: true,
		Data: statisticsResponse{
			TotalOrders:       stats.TotalOrders,
			PendingOrders:     stats.PendingOrders,
			CompletedOrders:   stats.CompletedOrders,
			TotalRevenue:      stats.TotalRevenue.StringFixed(domain.MoneyScale),
			AverageOrderValue: stats.AverageOrderValue.StringFixed(domain.MoneyScale),
		},
	})
}

func (s *Server) adminListOrders(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", defaultAdminLimit)

	result, err := s.queries.List(c.Request.Context(), page, limit, c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{
		Success: true,
		Data: adminPage{
			Orders: toOrderResponses(result.Orders),
			Pagination: pagination{
				CurrentPage: result.Page,
				TotalPages:  result.TotalPages,
				TotalCount:  result.Total,
				Limit:       result.Limit,
			},
		},
	})
}

func (s *Server) adminGetOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	order, err := s.queries.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Success: true, Data: toOrderResponse(order)})
}

func (s *Server) adminUpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	order, err := s.queries.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{
		Success: true,
		Message: "Order status updated successfully",
		Data:    toOrderResponse(order),
	})
}

func (s *Server) adminDeleteOrder(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.queries.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Success: true, Message: "Order deleted successfully"})
}
