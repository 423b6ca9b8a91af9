package handler

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/ogurasousui/personnel-records/internal/core/employee"
	"github.com/rs/zerolog"
)

// EmployeeHandler は社員ユースケースの HTTP 実装です。
type EmployeeHandler struct {
	svc employee.UseCase
	log zerolog.Logger
}

// NewEmployeeHandler は EmployeeHandler を生成します。
func NewEmployeeHandler(svc employee.UseCase, log zerolog.Logger) *EmployeeHandler {
	return &EmployeeHandler{svc: svc, log: log}
}

// Register は社員ルートを登録します。
func (h *EmployeeHandler) Register(r fiber.Router) {
	g := r.Group("/employees")
	g.Get("/", h.ListEmployees)
	g.Post("/", h.RegisterEmployee)
	g.Get("/ssn/:ssn", h.GetEmployeeBySSN)
	g.Delete("/ssn/:ssn", h.DeleteEmployeeBySSN)
	g.Get("/ssn/:ssn/unique", h.CheckSSNUnique)
	g.Get("/:id", h.GetEmployee)
	g.Put("/:id", h.UpdateEmployee)
}

// ListEmployees は全社員を名前順で返します。
func (h *EmployeeHandler) ListEmployees(c *fiber.Ctx) error {
	employees, err := h.svc.ListEmployees(c.UserContext())
	if err != nil {
		return h.writeError(c, err)
	}

	slices.SortFunc(employees, func(a, b *employee.Employee) int {
		if n := strings.Compare(a.Name, b.Name); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})

	resp := EmployeeListResponse{Employees: make([]EmployeeResponse, 0, len(employees))}
	for _, emp := range employees {
		resp.Employees = append(resp.Employees, toEmployeeResponse(emp))
	}
	return c.JSON(resp)
}

// RegisterEmployee は社員を登録します。
func (h *EmployeeHandler) RegisterEmployee(c *fiber.Ctx) error {
	var req EmployeeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "INVALID_BODY", Message: "request body must be JSON"})
	}

	in, err := req.parse()
	if err != nil {
		return h.writeError(c, err)
	}

	created, err := h.svc.RegisterEmployee(c.UserContext(), employee.RegisterEmployeeInput{
		Name:        in.name,
		SSN:         in.ssn,
		Salary:      in.salary,
		JoiningDate: in.joiningDate,
		BirthDate:   in.birthDate,
		Note:        in.note,
	})
	if err != nil {
		return h.writeError(c, err)
	}

	h.log.Info().Int64("employee_id", created.ID).Str("name", created.Name).Msg("employee registered")

	c.Location(fmt.Sprintf("/employees/%d", created.ID))
	return c.Status(fiber.StatusCreated).JSON(toEmployeeResponse(created))
}

// GetEmployee は ID で社員を返します。
func (h *EmployeeHandler) GetEmployee(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return h.writeError(c, err)
	}

	found, err := h.svc.GetEmployee(c.UserContext(), id)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(toEmployeeResponse(found))
}

// GetEmployeeBySSN は SSN で社員を返します。編集画面の読み込みに使われます。
func (h *EmployeeHandler) GetEmployeeBySSN(c *fiber.Ctx) error {
	found, err := h.svc.GetEmployeeBySSN(c.UserContext(), c.Params("ssn"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(toEmployeeResponse(found))
}

// UpdateEmployee は社員の可変項目をすべて上書きします。
func (h *EmployeeHandler) UpdateEmployee(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return h.writeError(c, err)
	}

	var req EmployeeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "INVALID_BODY", Message: "request body must be JSON"})
	}

	in, err := req.parse()
	if err != nil {
		return h.writeError(c, err)
	}

	updated, err := h.svc.UpdateEmployee(c.UserContext(), employee.UpdateEmployeeInput{
		ID:          id,
		Name:        in.name,
		SSN:         in.ssn,
		Salary:      in.salary,
		JoiningDate: in.joiningDate,
		BirthDate:   in.birthDate,
		Note:        in.note,
	})
	if err != nil {
		return h.writeError(c, err)
	}

	h.log.Info().Int64("employee_id", updated.ID).Str("name", updated.Name).Msg("employee updated")

	return c.JSON(toEmployeeResponse(updated))
}

// DeleteEmployeeBySSN は SSN で社員を削除します。存在しない SSN でも 204 を返します。
func (h *EmployeeHandler) DeleteEmployeeBySSN(c *fiber.Ctx) error {
	ssn := c.Params("ssn")
	if err := h.svc.DeleteEmployeeBySSN(c.UserContext(), ssn); err != nil {
		return h.writeError(c, err)
	}

	h.log.Info().Str("ssn", ssn).Msg("employee deleted")

	return c.SendStatus(fiber.StatusNoContent)
}

// CheckSSNUnique は SSN が利用可能かを返します。クエリ id を指定するとその社員自身の SSN は利用可能とみなします。
func (h *EmployeeHandler) CheckSSNUnique(c *fiber.Ctx) error {
	var idPtr *int64
	if raw := c.Query("id"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return h.writeError(c, err)
		}
		idPtr = &id
	}

	ssn := c.Params("ssn")
	unique, err := h.svc.IsSSNUnique(c.UserContext(), idPtr, ssn)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(SSNUniqueResponse{SSN: strings.TrimSpace(ssn), Unique: unique})
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, &employee.ValidationError{Field: "id", Err: employee.ErrInvalidID}
	}
	return id, nil
}
