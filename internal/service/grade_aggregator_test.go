package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/univlab/campus-api/internal/models"
)

func TestComputeAverageEmpty(t *testing.T) {
	assert.Equal(t, "0.00", ComputeAverage(nil))
	assert.Equal(t, "0.00", ComputeAverage([]models.WeightedGrade{}))
}

func TestComputeAverageRounding(t *testing.T) {
	// 32/3 rounds to 10.67, not 10.66.
	grades := []models.WeightedGrade{
		{Value: 10, Coefficient: 1},
		{Value: 10, Coefficient: 1},
		{Value: 12, Coefficient: 1},
	}
	assert.Equal(t, "10.67", ComputeAverage(grades))
}

func TestComputeAverageWeighted(t *testing.T) {
	grades := []models.WeightedGrade{
		{Value: 15, Coefficient: 3},
		{Value: 12, Coefficient: 1},
	}
	assert.Equal(t, "14.25", ComputeAverage(grades))
}

func TestComputeAverageDefaultsCoefficient(t *testing.T) {
	grades := []models.WeightedGrade{
		{Value: 10, Coefficient: 0},
		{Value: 14, Coefficient: -2},
	}
	assert.Equal(t, "12.00", ComputeAverage(grades))
}

func TestComputeSemesterAndYearlyAverages(t *testing.T) {
	grades := []models.GradeDetail{
		{GradeRecord: models.GradeRecord{Value: 16, Semester: 1, AcademicYear: "2025-2026", Validated: true, IsPublished: true}, ModuleCoefficient: 2},
		{GradeRecord: models.GradeRecord{Value: 10, Semester: 2, AcademicYear: "2025-2026", Validated: true, IsPublished: true}, ModuleCoefficient: 2},
		{GradeRecord: models.GradeRecord{Value: 19, Semester: 1, AcademicYear: "2024-2025", Validated: true, IsPublished: true}, ModuleCoefficient: 4},
		{GradeRecord: models.GradeRecord{Value: 1, Semester: 1, AcademicYear: "2025-2026", Validated: false}, ModuleCoefficient: 9},
	}

	semester, yearly := ComputeSemesterAndYearlyAverages(grades, 1, "2025-2026")
	assert.Equal(t, "16.00", semester)
	assert.Equal(t, "13.00", yearly)
}

func TestComputeSemesterAndYearlyAveragesNoData(t *testing.T) {
	semester, yearly := ComputeSemesterAndYearlyAverages(nil, 1, "2025-2026")
	assert.Equal(t, "0.00", semester)
	assert.Equal(t, "0.00", yearly)
}
