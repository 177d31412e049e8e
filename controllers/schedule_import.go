package controllers

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"classboard_go/models"
	"classboard_go/store"
	"classboard_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// ScheduleImportController bulk-imports weekly recurrence rules from an
// uploaded spreadsheet.
type ScheduleImportController struct {
	store *store.Store
}

func NewScheduleImportController(st *store.Store) *ScheduleImportController {
	return &ScheduleImportController{store: st}
}

var weekdayNames = map[string]int{
	"sunday": 0, "sun": 0,
	"monday": 1, "mon": 1,
	"tuesday": 2, "tue": 2, "tues": 2,
	"wednesday": 3, "wed": 3,
	"thursday": 4, "thu": 4, "thurs": 4,
	"friday": 5, "fri": 5,
	"saturday": 6, "sat": 6,
}

func parseWeekday(raw string) (int, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if n, err := strconv.Atoi(raw); err == nil && n >= 0 && n <= 6 {
		return n, true
	}
	n, ok := weekdayNames[raw]
	return n, ok
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

// Import handles POST /api/import/recurring.
// Multipart form with file field: file. Expected columns:
// ClassID | Weekday | StartTime | EndTime | Room
func (ic *ScheduleImportController) Import(c *fiber.Ctx) error {
	batchID := uuid.NewString()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}

	filename := strings.ToLower(fileHeader.Filename)
	if !strings.HasSuffix(filename, ".xlsx") && !strings.HasSuffix(filename, ".xls") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported file type (xlsx)"})
	}

	// Buffer to the OS temp folder for excelize to open
	tmpDir, _ := os.MkdirTemp("", "cbxls-")
	tmp := filepath.Join(tmpDir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), sanitizeFilename(fileHeader.Filename)))
	if err := c.SaveFile(fileHeader, tmp); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to buffer upload"})
	}
	defer os.Remove(tmp)

	f, err := excelize.OpenFile(tmp)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot read spreadsheet"})
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "spreadsheet has no sheets"})
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if len(rows) < 2 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is empty"})
	}

	// Header drives column positions
	col := map[string]int{}
	for i, name := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"classid", "weekday", "starttime", "endtime"} {
		if _, ok := col[required]; !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("missing column: %s", required)})
		}
	}

	cell := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	created := 0
	var errorsList []string
	for i, row := range rows[1:] {
		rowNum := i + 2

		classID, err := strconv.ParseUint(cell(row, "classid"), 10, 32)
		if err != nil || classID == 0 {
			errorsList = append(errorsList, fmt.Sprintf("row %d: invalid class id", rowNum))
			continue
		}
		if _, err := ic.store.GetClass(c.Context(), uint(classID)); err != nil {
			errorsList = append(errorsList, fmt.Sprintf("row %d: class %d not found", rowNum, classID))
			continue
		}
		weekday, ok := parseWeekday(cell(row, "weekday"))
		if !ok {
			errorsList = append(errorsList, fmt.Sprintf("row %d: invalid weekday", rowNum))
			continue
		}
		startMin, err := utils.MinuteOfDay(cell(row, "starttime"))
		if err != nil {
			errorsList = append(errorsList, fmt.Sprintf("row %d: invalid start time", rowNum))
			continue
		}
		endMin, err := utils.MinuteOfDay(cell(row, "endtime"))
		if err != nil {
			errorsList = append(errorsList, fmt.Sprintf("row %d: invalid end time", rowNum))
			continue
		}
		if endMin <= startMin {
			errorsList = append(errorsList, fmt.Sprintf("row %d: end time must be after start time", rowNum))
			continue
		}

		rule := models.RecurringSchedule{
			ClassID:   uint(classID),
			Weekday:   weekday,
			StartTime: utils.FormatMinute(startMin),
			EndTime:   utils.FormatMinute(endMin),
			RoomName:  cell(row, "room"),
		}
		if err := ic.store.CreateRecurringSchedule(c.Context(), &rule); err != nil {
			errorsList = append(errorsList, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		created++
	}

	logrus.WithFields(logrus.Fields{
		"batch_id": batchID,
		"file":     fileHeader.Filename,
		"created":  created,
		"errors":   len(errorsList),
	}).Info("Recurring schedule import finished")

	return c.JSON(fiber.Map{
		"batch_id": batchID,
		"created":  created,
		"rows":     len(rows) - 1,
		"errors":   errorsList,
	})
}
