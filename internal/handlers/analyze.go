package handlers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/Windi-Fikriyansyah/healthmate_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/models"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/realtime"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/services/analyzer"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/store"
)

type AnalyzeHandler struct {
	Analyzer  *analyzer.Service
	Analyses  *store.AnalysisStore
	Notifier  *realtime.Notifier
	UploadDir string
	Log       logrus.FieldLogger
}

func (h *AnalyzeHandler) AnalyzePrescription(c *fiber.Ctx) error {
	if !h.Analyzer.Available() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"message":        "AI module unavailable on this server.",
			"medications":    []any{},
			"interactions":   []any{},
			"accuracy_score": 0.0,
		})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "file is required",
		})
	}

	// the client's file name never touches the filesystem
	ext := strings.ToLower(filepath.Ext(file.Filename))
	tmp := filepath.Join(h.UploadDir, uuid.NewString()+ext)
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			h.Log.WithError(err).WithField("path", tmp).Warn("remove upload")
		}
	}()

	if err := c.SaveFile(file, tmp); err != nil {
		h.Log.WithError(err).Error("save upload")
		return processingFailed(c)
	}

	res, err := h.Analyzer.AnalyzeFile(c.UserContext(), tmp, file.Filename)
	if err != nil {
		h.Log.WithError(err).WithField("file_name", file.Filename).Error("prescription analysis failed")
		return processingFailed(c)
	}

	h.record(c, file.Filename, res)

	return c.Status(fiber.StatusOK).JSON(res.Result)
}

// record stores the analysis and notifies the uploader. Failures here do not
// affect the response.
func (h *AnalyzeHandler) record(c *fiber.Ctx, fileName string, res *analyzer.Analysis) {
	raw, err := json.Marshal(res.Result)
	if err != nil {
		h.Log.WithError(err).Warn("encode analysis result")
		return
	}

	a := &models.PrescriptionAnalysis{
		FileName:      fileName,
		ImageSHA256:   res.Digest,
		Result:        datatypes.JSON(raw),
		AccuracyScore: res.Result.AccuracyScore(),
		Cached:        res.Cached,
	}
	uid := middleware.SessionUID(c)
	if uid > 0 {
		a.UID = &uid
	}

	if err := h.Analyses.Create(c.UserContext(), a); err != nil {
		h.Log.WithError(err).Warn("record analysis")
		return
	}

	h.Notifier.PrescriptionAnalyzed(c.UserContext(), uid, a.ID, a.AccuracyScore, a.Cached)
}

func processingFailed(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "Error processing image.",
	})
}
