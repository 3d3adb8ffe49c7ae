package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/univlab/campus-api/internal/models"
	appErrors "github.com/univlab/campus-api/pkg/errors"
	"github.com/univlab/campus-api/pkg/export"
)

type exportGradeReader interface {
	ListDetailsByStudent(ctx context.Context, studentID string) ([]models.GradeDetail, error)
	ListByModule(ctx context.Context, moduleID string, semester int, academicYear string) ([]models.GradeDetail, error)
}

// ExportFile is a rendered document ready for download.
type ExportFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ExportService renders grade sheets and transcripts.
type ExportService struct {
	grades   exportGradeReader
	students studentReader
	modules  moduleReader
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(grades exportGradeReader, students studentReader, modules moduleReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		grades:   grades,
		students: students,
		modules:  modules,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// ModuleGradeSheetCSV renders a module's grade records as CSV.
func (s *ExportService) ModuleGradeSheetCSV(ctx context.Context, actor *models.JWTClaims, moduleID string, semester int, academicYear string) (*ExportFile, error) {
	module, err := s.modules.FindByID(ctx, moduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}
	if actor.Role == models.RoleProfessor && module.ProfessorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "module belongs to another professor")
	}

	grades, err := s.grades.ListByModule(ctx, moduleID, semester, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list module grades")
	}

	rows := make([][]string, 0, len(grades))
	for _, g := range grades {
		rows = append(rows, []string{
			g.StudentID,
			string(g.GradeType),
			fmt.Sprintf("%.2f", g.Value),
			strconv.FormatBool(g.Validated),
			g.CreatedAt.Format("2006-01-02"),
		})
	}
	data, err := s.csv.Render(export.Dataset{
		Headers: []string{"student_id", "grade_type", "value", "validated", "submitted"},
		Rows:    rows,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render CSV")
	}
	return &ExportFile{
		FileName:    fmt.Sprintf("grades_%s_s%d_%s.csv", module.Code, semester, academicYear),
		ContentType: "text/csv",
		Data:        data,
	}, nil
}

// StudentTranscriptPDF renders a student's validated grades and averages
// as a PDF transcript.
func (s *ExportService) StudentTranscriptPDF(ctx context.Context, studentID string) (*ExportFile, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	all, err := s.grades.ListDetailsByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}

	rows := make([][]string, 0, len(all)+2)
	for _, g := range all {
		if !g.Validated {
			continue
		}
		rows = append(rows, []string{
			g.ModuleCode,
			g.ModuleName,
			string(g.GradeType),
			strconv.Itoa(g.Semester),
			g.AcademicYear,
			fmt.Sprintf("%.2f", g.Value),
		})
	}
	semesterAvg, yearlyAvg := ComputeSemesterAndYearlyAverages(all, student.Semester, student.AcademicYear)
	rows = append(rows,
		[]string{"", "", "", "", "Semester average", semesterAvg},
		[]string{"", "", "", "", "Yearly average", yearlyAvg},
	)

	data, err := s.pdf.Render(export.Dataset{
		Headers: []string{"Code", "Module", "Type", "Sem", "Year", "Grade"},
		Rows:    rows,
	}, fmt.Sprintf("Transcript - %s (%s)", student.FullName, student.StudentNumber))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render PDF")
	}
	return &ExportFile{
		FileName:    fmt.Sprintf("transcript_%s.pdf", student.StudentNumber),
		ContentType: "application/pdf",
		Data:        data,
	}, nil
}
