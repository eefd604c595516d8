package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"streamview/internal/broker"
	"streamview/internal/constants"
	"streamview/internal/logger"
	"streamview/internal/session"
	"streamview/internal/stream"
	"streamview/pkg/cel"
	"streamview/pkg/circuitbreaker"
	"streamview/pkg/errors"
	"streamview/pkg/ids"
	"streamview/pkg/jsoncodec"
	"streamview/pkg/logging"
)

const (
	msgMissingStreamParams = "Missing serviceUrl or topic"
	msgMissingSendParams   = "Missing serviceUrl, topic, or payload"
)

type BaseHandler struct {
	Logger logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if errors.IsValidation(err) {
		h.Logger.WarnwCtx(c.Request.Context(), "Request rejected", "error", err, "path", c.Request.URL.Path)
	} else {
		h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	}

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

type StreamSettings struct {
	DefaultSubscription string
	KeepaliveInterval   time.Duration
}

type Handler struct {
	BaseHandler
	registry  *broker.Registry
	options   session.Options
	settings  StreamSettings
	evaluator *cel.Evaluator
	breakers  *circuitbreaker.Registry
}

// NewHandler wires the transport. breakers may be nil, in which case sends
// are not guarded.
func NewHandler(
	registry *broker.Registry,
	options session.Options,
	settings StreamSettings,
	evaluator *cel.Evaluator,
	breakers *circuitbreaker.Registry,
	log logger.Logger,
) *Handler {
	if settings.DefaultSubscription == "" {
		settings.DefaultSubscription = constants.DefaultSubscription
	}
	return &Handler{
		BaseHandler: BaseHandler{Logger: log},
		registry:    registry,
		options:     options,
		settings:    settings,
		evaluator:   evaluator,
		breakers:    breakers,
	}
}

// RegisterRoutes mounts the API. sendMiddleware runs only on the publish
// route.
func (h *Handler) RegisterRoutes(router gin.IRouter, sendMiddleware ...gin.HandlerFunc) {
	api := router.Group("/api")
	{
		api.GET("/stream", h.Stream)
		api.GET("/where", h.Where)

		send := append(append([]gin.HandlerFunc{}, sendMiddleware...), h.Send)
		api.POST("/send", send...)
	}
}

// Where godoc
// @Summary      Check a where expression
// @Description  Without expr, lists example expressions. With expr, reports whether it compiles to a boolean predicate
// @Tags         stream
// @Produce      json
// @Param        expr  query  string  false  "CEL filter expression"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}
// @Router       /api/where [get]
func (h *Handler) Where(c *gin.Context) {
	expr := c.Query("expr")
	if expr == "" {
		c.JSON(http.StatusOK, gin.H{"examples": cel.WhereExpressionExamples})
		return
	}

	if err := h.evaluator.ValidateFilterExpression(expr); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
			errors.ErrValidation.WithMessage("Invalid where expression").WithDetail("detail", err.Error()),
		))
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "expr": expr})
}

// Stream godoc
// @Summary      Stream topic messages
// @Description  Subscribe to a topic and push received messages as Server-Sent Events
// @Tags         stream
// @Produce      text/event-stream
// @Param        serviceUrl        query  string  true   "Broker URL"
// @Param        topic             query  string  true   "Topic"
// @Param        token             query  string  false  "Bearer token"
// @Param        subscription      query  string  false  "Subscription name"
// @Param        subscriptionType  query  string  false  "Exclusive, Shared, Failover or KeyShared"
// @Param        initialPosition   query  string  false  "Earliest or Latest"
// @Param        verbose           query  string  false  "1 enables diagnostics"
// @Param        filter            query  string  false  "Substring filter"
// @Param        where             query  string  false  "CEL filter expression"
// @Success      200
// @Failure      400  {object}  map[string]interface{}
// @Router       /api/stream [get]
func (h *Handler) Stream(c *gin.Context) {
	var q StreamQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	if q.ServiceURL == "" || q.Topic == "" {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithMessage(msgMissingStreamParams)))
		return
	}

	var where *cel.Filter
	if q.Where != "" {
		f, err := h.evaluator.CompileFilter(q.Where)
		if err != nil {
			c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
				errors.ErrValidation.WithMessage("Invalid where expression").WithDetail("detail", err.Error()),
			))
			return
		}
		where = f
	}

	if q.Subscription == "" {
		q.Subscription = h.settings.DefaultSubscription
	}
	verbose := q.Verbose == constants.VerboseOn

	streamID := ids.NewStreamID()
	ctx := logging.WithTopic(logging.WithStreamID(c.Request.Context(), streamID), q.Topic)

	consumer := session.NewConsumer(h.registry, session.ConsumerConfig{
		ServiceURL:       q.ServiceURL,
		Token:            q.Token,
		Topic:            q.Topic,
		Subscription:     q.Subscription,
		SubscriptionType: q.SubscriptionType,
		InitialPosition:  q.InitialPosition,
		Verbose:          verbose,
	}, h.options, h.Logger)

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	sink := newSSESink(ctx, c.Writer)
	sink.keepalive(h.settings.KeepaliveInterval)
	defer sink.stop()

	h.Logger.InfowCtx(ctx, "Stream opened",
		"subscription", q.Subscription,
		"subscription_type", q.SubscriptionType,
		"filter", q.Filter != "",
		"where", q.Where != "",
	)

	bridge := stream.NewBridge(stream.Config{
		Filter:  q.Filter,
		Where:   where,
		Verbose: verbose,
	}, h.Logger)

	if err := bridge.Run(ctx, consumer, sink); err != nil {
		h.Logger.WarnwCtx(ctx, "Stream ended with error", "error", err)
		return
	}
	h.Logger.InfowCtx(ctx, "Stream ended")
}

// Send godoc
// @Summary      Publish a message
// @Description  Connect a producer, send one message and close the producer
// @Tags         send
// @Accept       json
// @Produce      json
// @Param        request  body      SendRequest  true  "Message to publish"
// @Success      200      {object}  SendResponse
// @Failure      400      {object}  map[string]interface{}
// @Failure      429      {object}  map[string]interface{}
// @Failure      500      {object}  map[string]interface{}
// @Failure      503      {object}  map[string]interface{}
// @Router       /api/send [post]
func (h *Handler) Send(c *gin.Context) {
	req, err := decodeSendRequest(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if req.ServiceURL == "" || req.Topic == "" || len(req.Payload) == 0 {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithMessage(msgMissingSendParams)))
		return
	}

	props, err := stringProperties(req.Properties)
	if err != nil {
		h.HandleError(c, errors.ErrValidation.WithMessage("Invalid properties").WithCause(err))
		return
	}

	ctx := logging.WithTopic(c.Request.Context(), req.Topic)
	cfg := session.ProducerConfig{
		ServiceURL: req.ServiceURL,
		Token:      req.Token,
		Topic:      req.Topic,
		Verbose:    req.Verbose,
	}
	sendReq := session.SendRequest{
		Payload:    req.Payload,
		Key:        req.Key,
		Properties: props,
	}

	publish := func() (interface{}, error) {
		return session.Publish(ctx, h.registry, cfg, h.options, sendReq, h.Logger)
	}

	var result interface{}
	if h.breakers != nil {
		result, err = h.breakers.Get(req.ServiceURL).ExecuteWithContext(ctx, publish)
	} else {
		result, err = publish()
	}
	if err != nil {
		if circuitbreaker.IsOpenError(err) {
			h.HandleError(c, errors.ErrServiceUnavailable.
				WithMessage("Broker unavailable, circuit open").
				WithCause(err))
			return
		}
		h.HandleError(c, errors.Wrap(err, errors.ErrBroker.WithMessage(err.Error())))
		return
	}

	c.JSON(http.StatusOK, SendResponse{OK: true, MessageID: result.(string)})
}

func decodeSendRequest(c *gin.Context) (SendRequest, error) {
	var req SendRequest

	body, err := c.GetRawData()
	if err != nil {
		return req, errors.ErrValidation.WithMessage("Failed to read request body").WithCause(err)
	}
	if len(body) == 0 {
		return req, errors.ErrValidation.WithMessage(msgMissingSendParams)
	}
	if err := jsoncodec.Unmarshal(body, &req); err != nil {
		return req, errors.ErrValidation.WithMessage("Invalid JSON body").WithDetail("detail", err.Error())
	}
	return req, nil
}
