package httpapi

import (
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/i474232898/watchover/internal/scheduler"
	"github.com/i474232898/watchover/internal/tracker"
)

var validate = validator.New()

// sessions tracks issued login tokens. The feed itself is public read-only,
// so this gates the UI, not the data.
type sessions struct {
	mu     sync.Mutex
	tokens map[string]string // token -> device id
}

func (s *sessions) add(deviceID string) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = deviceID
	s.mu.Unlock()
	return token
}

func (s *sessions) clear() {
	s.mu.Lock()
	s.tokens = make(map[string]string)
	s.mu.Unlock()
}

type loginRequest struct {
	DeviceID string `json:"deviceId" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *tracker.Service, sched *scheduler.Scheduler) {
	sess := &sessions{tokens: make(map[string]string)}
	v1 := app.Group("/api/v1")

	// Login: verify the device id/password pair against the feed, start the
	// update scheduler, hand back an opaque token.
	v1.Post("/session", func(c *fiber.Ctx) error {
		var req loginRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ok, err := service.Login(c.Context(), req.DeviceID, req.Password)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "could not reach the device feed")
		}
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid device ID or password")
		}

		if err := sched.Start(); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to start updates")
		}

		return c.JSON(fiber.Map{
			"token":    sess.add(req.DeviceID),
			"deviceId": req.DeviceID,
		})
	})

	// Logout: stop the timers, clear every cache namespace, drop session
	// state.
	v1.Delete("/session", func(c *fiber.Ctx) error {
		sched.Stop()
		service.Reset(c.Context())
		sess.clear()
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/location/current", func(c *fiber.Ctx) error {
		return c.JSON(service.CurrentView())
	})

	v1.Get("/activity", func(c *fiber.Ctx) error {
		force := c.QueryBool("refresh", false)
		return c.JSON(service.History(c.Context(), force))
	})
}
