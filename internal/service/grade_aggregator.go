package service

import (
	"fmt"

	"github.com/univlab/campus-api/internal/models"
)

// ComputeAverage returns the coefficient-weighted average of the given
// grades formatted with two decimal places. An empty input yields "0.00".
// Non-positive coefficients count as 1.
func ComputeAverage(grades []models.WeightedGrade) string {
	if len(grades) == 0 {
		return "0.00"
	}
	var weightedSum, totalWeight float64
	for _, g := range grades {
		coefficient := g.Coefficient
		if coefficient <= 0 {
			coefficient = 1
		}
		weightedSum += g.Value * float64(coefficient)
		totalWeight += float64(coefficient)
	}
	if totalWeight == 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", weightedSum/totalWeight)
}

// ComputeSemesterAndYearlyAverages derives the semester and academic-year
// averages from a student's grade history. Only validated, published
// grades count.
func ComputeSemesterAndYearlyAverages(grades []models.GradeDetail, semester int, academicYear string) (string, string) {
	var semesterGrades, yearlyGrades []models.WeightedGrade
	for _, g := range grades {
		if !g.Validated || !g.IsPublished || g.AcademicYear != academicYear {
			continue
		}
		weighted := models.WeightedGrade{Value: g.Value, Coefficient: g.ModuleCoefficient}
		yearlyGrades = append(yearlyGrades, weighted)
		if g.Semester == semester {
			semesterGrades = append(semesterGrades, weighted)
		}
	}
	return ComputeAverage(semesterGrades), ComputeAverage(yearlyGrades)
}
