package handlers

import (
	"net/http"

	"irrigation_controller/internal/models"

	"github.com/gin-gonic/gin"
)

// ProgramRequest is the body of POST /api/v1/programs and PUT /api/v1/programs/{id}.
type ProgramRequest struct {
	Name           string        `json:"name" example:"Lawn"`
	Months         []int         `json:"months" example:"5,6,7,8"`
	ActivationTime string        `json:"activation_time" example:"06:00"`
	Recurrence     string        `json:"recurrence" example:"every_other_day"`
	IntervalDays   int           `json:"interval_days,omitempty" example:"3"`
	Steps          []models.Step `json:"steps"`
}

func (r ProgramRequest) toModel() models.Program {
	return models.Program{
		Name:           r.Name,
		Months:         r.Months,
		ActivationTime: r.ActivationTime,
		Recurrence:     r.Recurrence,
		IntervalDays:   r.IntervalDays,
		Steps:          r.Steps,
	}
}

// @Summary      List programs
// @Tags         programs
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, programs"
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/programs [get]
// @Security     BearerAuth
func (h *Handler) listPrograms(c *gin.Context) {
	programs, err := h.services.Programs.ListPrograms(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, "programs_list_failed", "failed to load programs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(programs), "programs": programs})
}

// @Summary      Get program
// @Tags         programs
// @Produce      json
// @Param        id  path  string  true  "Program id"
// @Success      200  {object}  models.Program
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/programs/{id} [get]
// @Security     BearerAuth
func (h *Handler) getProgram(c *gin.Context) {
	p, err := h.services.Programs.GetProgram(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondServiceError(c, "program_get_failed", "failed to load program", err, "program_id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Create program
// @Description  Months must not overlap with any other program.
// @Tags         programs
// @Accept       json
// @Produce      json
// @Param        body  body  ProgramRequest  true  "Program definition"
// @Success      201  {object}  models.Program
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string  "month conflict"
// @Router       /api/v1/programs [post]
// @Security     BearerAuth
func (h *Handler) createProgram(c *gin.Context) {
	var req ProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logAndJSONError(c, http.StatusBadRequest, errInvalidBodyPref+err.Error(), "program_bad_body", err)
		return
	}
	p, err := h.services.Programs.CreateProgram(c.Request.Context(), req.toModel())
	if err != nil {
		h.respondServiceError(c, "program_create_failed", "failed to create program", err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// @Summary      Update program
// @Description  A running program is stopped before it is replaced.
// @Tags         programs
// @Accept       json
// @Produce      json
// @Param        id    path  string          true  "Program id"
// @Param        body  body  ProgramRequest  true  "Program definition"
// @Success      200  {object}  models.Program
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string  "month conflict"
// @Router       /api/v1/programs/{id} [put]
// @Security     BearerAuth
func (h *Handler) updateProgram(c *gin.Context) {
	var req ProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logAndJSONError(c, http.StatusBadRequest, errInvalidBodyPref+err.Error(), "program_bad_body", err)
		return
	}
	id := c.Param("id")
	p, err := h.services.Programs.UpdateProgram(c.Request.Context(), id, req.toModel())
	if err != nil {
		h.respondServiceError(c, "program_update_failed", "failed to update program", err, "program_id", id)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Delete program
// @Tags         programs
// @Produce      json
// @Param        id  path  string  true  "Program id"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/programs/{id} [delete]
// @Security     BearerAuth
func (h *Handler) deleteProgram(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.Programs.DeleteProgram(c.Request.Context(), id); err != nil {
		h.respondServiceError(c, "program_delete_failed", "failed to delete program", err, "program_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusDeleted})
}

// @Summary      Run program now
// @Description  Starts the program in the background; manual zone control is locked until it ends.
// @Tags         programs
// @Produce      json
// @Param        id  path  string  true  "Program id"
// @Success      202  {object}  map[string]interface{}  "status, state"
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string  "another program is running"
// @Router       /api/v1/programs/{id}/run [post]
// @Security     BearerAuth
func (h *Handler) runProgram(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.Programs.RunProgram(c.Request.Context(), id); err != nil {
		h.respondServiceError(c, "program_run_failed", "failed to run program", err, "program_id", id)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": statusStarted, "state": h.services.Programs.State()})
}

// @Summary      Stop running program
// @Tags         programs
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, state"
// @Failure      409  {object}  map[string]string  "nothing running"
// @Router       /api/v1/programs/stop [post]
// @Security     BearerAuth
func (h *Handler) stopProgram(c *gin.Context) {
	if err := h.services.Programs.StopProgram(c.Request.Context()); err != nil {
		h.respondServiceError(c, "program_stop_failed", "failed to stop program", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusStopped, "state": h.services.Programs.State()})
}

// @Summary      Execution state
// @Tags         programs
// @Produce      json
// @Success      200  {object}  models.ExecutionState
// @Router       /api/v1/programs/state [get]
// @Security     BearerAuth
func (h *Handler) programState(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Programs.State())
}
