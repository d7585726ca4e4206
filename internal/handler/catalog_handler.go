package handler

import (
	"net/http"
	"time"

	"github.com/Eursukkul/studio-ledger/internal/dto"
	"github.com/Eursukkul/studio-ledger/internal/service"
	"github.com/labstack/echo/v4"
)

// defaultClassWindow bounds GET /classes when no range is given.
const defaultClassWindow = 14 * 24 * time.Hour

type CatalogHandler struct {
	svc service.CatalogService
	now func() time.Time
}

func NewCatalogHandler(svc service.CatalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc, now: time.Now}
}

func (h *CatalogHandler) RegisterRoutes(e *echo.Echo, g Guards) {
	e.GET("/disciplines", h.ListDisciplines)
	e.GET("/instructors", h.ListInstructors)
	e.GET("/packages", h.ListPackages)
	e.GET("/packages/:slug", h.GetPackage)
	e.GET("/classes", h.ListClasses)
	e.GET("/classes/:id", h.GetClass)

	e.POST("/admin/disciplines", h.CreateDiscipline, g.Admin)
	e.PUT("/admin/disciplines/:id", h.UpdateDiscipline, g.Admin)
	e.DELETE("/admin/disciplines/:id", h.DeleteDiscipline, g.Admin)
	e.POST("/admin/instructors", h.CreateInstructor, g.Admin)
	e.POST("/admin/packages", h.CreatePackage, g.Admin)
	e.POST("/admin/classes", h.ScheduleClass, g.Admin)
	e.POST("/admin/classes/:id/cancel", h.CancelClass, g.Admin)
}

func disciplineInput(req dto.DisciplineRequest) service.DisciplineInput {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return service.DisciplineInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Benefits:    req.Benefits,
		Order:       req.Order,
		IsActive:    active,
	}
}

func (h *CatalogHandler) ListDisciplines(c echo.Context) error {
	list, err := h.svc.ListDisciplines(c.Request().Context(), c.QueryParam("all") != "true")
	if err != nil {
		return toHTTPError(err)
	}
	out := make([]dto.DisciplineResponse, len(list))
	for i := range list {
		out[i] = dto.ToDisciplineResponse(&list[i])
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) CreateDiscipline(c echo.Context) error {
	var req dto.DisciplineRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	d, err := h.svc.CreateDiscipline(c.Request().Context(), disciplineInput(req))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, dto.ToDisciplineResponse(d))
}

func (h *CatalogHandler) UpdateDiscipline(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.DisciplineRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	d, err := h.svc.UpdateDiscipline(c.Request().Context(), id, disciplineInput(req))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToDisciplineResponse(d))
}

func (h *CatalogHandler) DeleteDiscipline(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDiscipline(c.Request().Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CatalogHandler) ListInstructors(c echo.Context) error {
	list, err := h.svc.ListInstructors(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	out := make([]dto.InstructorResponse, len(list))
	for i := range list {
		out[i] = dto.ToInstructorResponse(&list[i])
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) CreateInstructor(c echo.Context) error {
	var req dto.CreateInstructorRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	inst, err := h.svc.CreateInstructor(c.Request().Context(), service.InstructorInput{
		Name:        req.Name,
		Bio:         req.Bio,
		Disciplines: req.Disciplines,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, dto.ToInstructorResponse(inst))
}

func (h *CatalogHandler) ListPackages(c echo.Context) error {
	list, err := h.svc.ListPackages(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	out := make([]dto.PackageResponse, len(list))
	for i := range list {
		out[i] = dto.ToPackageResponse(&list[i])
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) GetPackage(c echo.Context) error {
	p, err := h.svc.GetPackageBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToPackageResponse(p))
}

func (h *CatalogHandler) CreatePackage(c echo.Context) error {
	var req dto.CreatePackageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	p, err := h.svc.CreatePackage(c.Request().Context(), service.PackageInput{
		Slug:         req.Slug,
		Name:         req.Name,
		ClassCount:   req.ClassCount,
		Price:        req.Price,
		ValidityDays: req.ValidityDays,
		IsShareable:  req.IsShareable,
		MaxShares:    req.MaxShares,
		IsFeatured:   req.IsFeatured,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, dto.ToPackageResponse(p))
}

// ListClasses reads from/to as RFC 3339 and defaults to the next two weeks.
func (h *CatalogHandler) ListClasses(c echo.Context) error {
	from := h.now()
	to := from.Add(defaultClassWindow)
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return badRequest("from must be RFC 3339")
		}
		from = t
		to = from.Add(defaultClassWindow)
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return badRequest("to must be RFC 3339")
		}
		to = t
	}

	list, err := h.svc.ListClasses(c.Request().Context(), from, to)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToClassList(list))
}

func (h *CatalogHandler) GetClass(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	class, err := h.svc.GetClass(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, dto.ToClassResponse(class))
}

func (h *CatalogHandler) ScheduleClass(c echo.Context) error {
	var req dto.ScheduleClassRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	classes, err := h.svc.ScheduleClass(c.Request().Context(), service.ScheduleClassInput{
		DisciplineID:              req.DisciplineID,
		ComplementaryDisciplineID: req.ComplementaryDisciplineID,
		InstructorID:              req.InstructorID,
		StartsAt:                  req.StartsAt,
		Duration:                  req.Duration,
		MaxCapacity:               req.MaxCapacity,
		ClassType:                 req.ClassType,
		RepeatWeeks:               req.RepeatWeeks,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, dto.ToClassList(classes))
}

func (h *CatalogHandler) CancelClass(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.CancelClass(c.Request().Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
