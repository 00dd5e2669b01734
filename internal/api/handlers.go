package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pgx-risk-server/internal/cpic"
	"github.com/pgx-risk-server/internal/domain"
	"github.com/pgx-risk-server/internal/health"
	"github.com/pgx-risk-server/internal/service"
	"github.com/pgx-risk-server/pkg/vcf"
)

// multipartMemory is the in-memory threshold for multipart parsing before
// parts spill to temp files. It sits above the default upload cap so VCF
// uploads normally stay in memory.
const multipartMemory = 8 << 20

// analyzeJSONRequest is the body of POST /api/v1/analyze/json.
type analyzeJSONRequest struct {
	VCFContent string `json:"vcf_content" binding:"required"`
	Drug       string `json:"drug" binding:"required"`
	PatientID  string `json:"patient_id"`
	UseLLM     *bool  `json:"use_llm"`
}

// abortError writes a structured error response and stops the handler chain.
func (s *Server) abortError(c *gin.Context, status int, code, message, details string) {
	c.AbortWithStatusJSON(status, domain.NewAPIError(code, message, details, requestID(c)))
}

// handleIndex serves the service banner with an endpoint directory.
func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "PGx Risk Server",
		"version":     s.version,
		"description": "Pharmacogenomic risk analysis based on CPIC guidelines",
		"endpoints": gin.H{
			"/api/v1/analyze":         "POST - Analyze VCF upload for drug-gene interaction",
			"/api/v1/analyze/json":    "POST - Analyze VCF content provided as JSON",
			"/api/v1/supported-drugs": "GET - List supported drugs",
			"/api/v1/supported-genes": "GET - List supported genes",
			"/api/v1/drug-info/:drug": "GET - Guideline details for a specific drug",
			"/api/v1/sample-vcf":      "GET - Demo VCF for a named scenario",
			"/health":                 "GET - Component health",
			"/metrics":                "GET - Prometheus metrics",
		},
	})
}

// handleHealth reports component health, 503 when a required component is out.
func (s *Server) handleHealth(c *gin.Context) {
	status := s.checker.Check(c.Request.Context())

	code := http.StatusOK
	if status.Overall == health.StateUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// handleAnalyze accepts a multipart VCF upload and runs the risk analysis.
// The file may be plain text or gzip, detected by content. The form is
// parsed eagerly so an oversized body maps to 413 instead of a missing
// field error.
func (s *Server) handleAnalyze(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		if isBodyTooLarge(err) {
			s.abortError(c, http.StatusRequestEntityTooLarge, domain.ErrPayloadTooLarge,
				"uploaded file exceeds the size limit", "")
			return
		}
		s.abortError(c, http.StatusBadRequest, domain.ErrValidation,
			"request must be multipart/form-data", err.Error())
		return
	}

	drug := strings.TrimSpace(c.PostForm("drug"))
	if drug == "" {
		s.abortError(c, http.StatusBadRequest, domain.ErrValidation,
			"drug form field is required", "")
		return
	}

	fileHeader, err := c.FormFile("vcf_file")
	if err != nil {
		s.abortError(c, http.StatusBadRequest, domain.ErrValidation,
			"vcf_file upload is required", "")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		s.abortError(c, http.StatusBadRequest, domain.ErrInvalidInput,
			"uploaded file could not be read", err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.abortError(c, http.StatusBadRequest, domain.ErrInvalidInput,
			"uploaded file could not be read", err.Error())
		return
	}

	content, err := vcf.DecodeUpload(fileHeader.Filename, data)
	if err != nil {
		s.abortError(c, http.StatusBadRequest, domain.ErrVCFFormat,
			"invalid VCF upload", err.Error())
		return
	}
	if !vcf.LooksLikeVCF(content) {
		s.abortError(c, http.StatusBadRequest, domain.ErrVCFFormat,
			"Invalid VCF file format", "")
		return
	}

	s.runAnalysis(c, service.AnalyzeParams{
		PatientID:  c.PostForm("patient_id"),
		Drug:       drug,
		RawContent: content,
		UseLLM:     formBool(c.PostForm("use_llm"), true),
	})
}

// handleAnalyzeJSON accepts VCF content inline in a JSON body.
func (s *Server) handleAnalyzeJSON(c *gin.Context) {
	var req analyzeJSONRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if isBodyTooLarge(err) {
			s.abortError(c, http.StatusRequestEntityTooLarge, domain.ErrPayloadTooLarge,
				"request body exceeds the size limit", "")
			return
		}
		s.abortError(c, http.StatusBadRequest, domain.ErrValidation,
			"invalid analysis request", err.Error())
		return
	}

	if strings.TrimSpace(req.VCFContent) == "" {
		s.abortError(c, http.StatusBadRequest, domain.ErrInvalidInput,
			"Empty VCF content", "")
		return
	}

	content := []byte(req.VCFContent)
	if !vcf.LooksLikeVCF(content) {
		s.abortError(c, http.StatusBadRequest, domain.ErrVCFFormat,
			"Invalid VCF file format", "")
		return
	}

	useLLM := true
	if req.UseLLM != nil {
		useLLM = *req.UseLLM
	}

	s.runAnalysis(c, service.AnalyzeParams{
		PatientID:  req.PatientID,
		Drug:       req.Drug,
		RawContent: content,
		UseLLM:     useLLM,
	})
}

// runAnalysis is the shared tail of both analyze endpoints.
func (s *Server) runAnalysis(c *gin.Context, params service.AnalyzeParams) {
	startTime := time.Now()

	report, err := s.analyzer.Analyze(c.Request.Context(), params)
	if err != nil {
		s.abortError(c, http.StatusInternalServerError, domain.ErrInternalServer,
			"Analysis failed", err.Error())
		return
	}

	s.metrics.RecordAnalysis(report.Drug, report.RiskAssessment.RiskLabel,
		report.QualityMetrics.ExplanationSource, time.Since(startTime))

	c.JSON(http.StatusOK, report)
}

// handleSupportedDrugs lists every drug the guideline tables cover.
func (s *Server) handleSupportedDrugs(c *gin.Context) {
	drugs := s.kb.SupportedDrugs()
	c.JSON(http.StatusOK, gin.H{
		"drugs": drugs,
		"count": len(drugs),
	})
}

// handleSupportedGenes lists every gene on the panel.
func (s *Server) handleSupportedGenes(c *gin.Context) {
	genes := s.kb.SupportedGenes()
	c.JSON(http.StatusOK, gin.H{
		"genes": genes,
		"count": len(genes),
	})
}

// handleDrugInfo returns the guideline detail for one drug: the gene it is
// keyed to, the diplotypes and phenotypes the tables know, the monitored
// variants, and alternative drug suggestions.
func (s *Server) handleDrugInfo(c *gin.Context) {
	drug := strings.TrimSpace(c.Param("drug"))

	gene, ok := s.kb.GeneForDrug(drug)
	if !ok {
		s.abortError(c, http.StatusNotFound, domain.ErrUnsupportedDrug,
			fmt.Sprintf("Drug '%s' not found", drug), "")
		return
	}

	guideline, ok := s.kb.GuidelineFor(gene)
	if !ok {
		s.abortError(c, http.StatusNotFound, domain.ErrUnsupportedDrug,
			fmt.Sprintf("No guideline found for drug '%s'", drug), "")
		return
	}

	diplotypes := make([]string, 0, len(guideline.Diplotypes))
	for diplotype := range guideline.Diplotypes {
		diplotypes = append(diplotypes, diplotype)
	}
	sort.Slice(diplotypes, func(i, j int) bool {
		return compareDiplotypes(diplotypes[i], diplotypes[j]) < 0
	})

	phenotypes := make([]string, 0, len(guideline.Risk))
	for _, phenotype := range []domain.Phenotype{
		domain.PoorMetabolizer,
		domain.IntermediateMetabolizer,
		domain.NormalMetabolizer,
		domain.RapidMetabolizer,
		domain.UltrarapidMetabolizer,
	} {
		if _, covered := guideline.Risk[phenotype]; covered {
			phenotypes = append(phenotypes, phenotype.String())
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"drug":                  strings.ToUpper(drug),
		"gene":                  gene,
		"guideline_source_drug": guideline.ReferenceDrug,
		"diplotypes":            diplotypes,
		"phenotypes":            phenotypes,
		"common_variants":       s.kb.MonitoredVariants(gene),
		"alternatives":          s.kb.Alternatives(drug),
	})
}

// handleSampleVCF serves a demo VCF for a named scenario as plain text.
func (s *Server) handleSampleVCF(c *gin.Context) {
	scenario := c.DefaultQuery("scenario", vcf.ScenarioNormal)

	content, err := vcf.Sample(scenario)
	if err != nil {
		s.abortError(c, http.StatusBadRequest, domain.ErrInvalidInput,
			fmt.Sprintf("unknown sample scenario %q", scenario),
			"available scenarios: "+strings.Join(vcf.Scenarios(), ", "))
		return
	}

	c.Header("Content-Disposition",
		fmt.Sprintf("attachment; filename=pgx_sample_%s.vcf", scenario))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", content)
}

// compareDiplotypes orders "*X/*Y" strings by allele precedence rather than
// lexicographically, so *2 sorts before *17.
func compareDiplotypes(a, b string) int {
	left := strings.SplitN(a, "/", 2)
	right := strings.SplitN(b, "/", 2)
	if cmp := cpic.CompareAlleles(left[0], right[0]); cmp != 0 {
		return cmp
	}
	if len(left) < 2 || len(right) < 2 {
		return len(left) - len(right)
	}
	return cpic.CompareAlleles(left[1], right[1])
}

// isBodyTooLarge reports whether err came from the MaxBodySize cap. The
// multipart reader does not always wrap the original *http.MaxBytesError,
// so the message is checked as a fallback.
func isBodyTooLarge(err error) bool {
	if err == nil {
		return false
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

// formBool parses checkbox-style form booleans, defaulting absent or
// malformed values.
func formBool(raw string, fallback bool) bool {
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
