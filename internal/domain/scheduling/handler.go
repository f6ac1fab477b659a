package scheduling

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/interop/gateway/internal/platform/hl7v2"
)

type Handler struct {
	svc      *Service
	mllpAddr string
}

// NewHandler creates the HTTP intake handler. mllpAddr is the listen address
// of the socket transport, empty when MLLP is disabled.
func NewHandler(svc *Service, mllpAddr string) *Handler {
	return &Handler{svc: svc, mllpAddr: mllpAddr}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/hl7/siu", h.ReceiveSIU)
	api.GET("/hl7/status", h.Status)
	api.GET("/hl7/messages", h.RecentMessages)
}

type messageEnvelope struct {
	Message  string `json:"message"`
	WrapMLLP bool   `json:"wrapMLLP"`
}

// ReceiveSIU accepts an HL7v2 message as a raw text body or a JSON envelope
// and answers with the acknowledgement in the matching shape. Rejections are
// 400, store failures 500; the body is a valid ACK in every case so senders
// always get a protocol-conformant response.
func (h *Handler) ReceiveSIU(c echo.Context) error {
	isJSON := strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)

	var raw string
	var wrapMLLP bool
	if isJSON {
		var env messageEnvelope
		if err := c.Bind(&env); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON envelope")
		}
		raw = env.Message
		wrapMLLP = env.WrapMLLP
	} else {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
		}
		raw = string(body)
	}

	res := h.svc.Process(c.Request().Context(), raw)

	ackBytes := hl7v2.Serialize(res.Ack)
	if wrapMLLP {
		ackBytes = hl7v2.Frame(ackBytes)
	}

	status := http.StatusOK
	if res.Err != nil {
		if res.Outcome.Code == hl7v2.AckError {
			status = http.StatusInternalServerError
		} else {
			status = http.StatusBadRequest
		}
	}

	if isJSON {
		return c.JSON(status, map[string]string{"message": string(ackBytes)})
	}
	return c.Blob(status, echo.MIMETextPlainCharsetUTF8, ackBytes)
}

// Status reports the supported message-type/trigger pairs and the socket
// transport address for operational visibility.
func (h *Handler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"supported_events": h.svc.SupportedEvents(),
		"mllp": map[string]interface{}{
			"enabled": h.mllpAddr != "",
			"addr":    h.mllpAddr,
		},
	})
}

func (h *Handler) RecentMessages(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	entries, err := h.svc.RecentMessages(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read message log")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":    len(entries),
		"messages": entries,
	})
}
