package controllers

import (
	"errors"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/kendall-kelly/triloka-construction-api/services"
)

func init() {
	// Report binding errors by their JSON/form names rather than Go field names
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
	}
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondMessage(c *gin.Context, message string, data interface{}) {
	body := gin.H{
		"success": true,
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(http.StatusOK, body)
}

func respondErrorCode(c *gin.Context, status int, code, message string, details interface{}) {
	errBody := gin.H{
		"code":    code,
		"message": message,
	}
	if details != nil {
		errBody["details"] = details
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   errBody,
	})
}

var kindStatus = map[services.ErrorKind]int{
	services.KindInternal:     http.StatusInternalServerError,
	services.KindNotFound:     http.StatusNotFound,
	services.KindForbidden:    http.StatusForbidden,
	services.KindValidation:   http.StatusUnprocessableEntity,
	services.KindRule:         http.StatusBadRequest,
	services.KindConflict:     http.StatusConflict,
	services.KindUnauthorized: http.StatusUnauthorized,
}

// respondError writes the error envelope for a service failure
func respondError(c *gin.Context, err error) {
	var se *services.ServiceError
	if !errors.As(err, &se) {
		log.Printf("Unhandled error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		respondErrorCode(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
		return
	}

	status, ok := kindStatus[se.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	var details interface{}
	switch {
	case len(se.Fields) > 0:
		details = se.Fields
	case se.Kind == services.KindInternal && se.Err != nil:
		log.Printf("Internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, se)
		details = se.Err.Error()
	}
	respondErrorCode(c, status, se.Code, se.Message, details)
}

// bindJSON binds the request body and reports binding failures as field errors
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		respondBindingError(c, err)
		return false
	}
	return true
}

// bindForm binds multipart or urlencoded form fields
func bindForm(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBind(dest); err != nil {
		respondBindingError(c, err)
		return false
	}
	return true
}

func respondBindingError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fieldPath(fe)] = validationMessage(fe)
		}
		respondErrorCode(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid request data", details)
		return
	}
	respondErrorCode(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid request data", err.Error())
}

// fieldPath drops the root struct name from the validator namespace (e.g. "items[0].quantity")
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "eqfield":
		return "must match " + fe.Param()
	case "dive":
		return "is invalid"
	default:
		return "is invalid"
	}
}

// parseID reads a positive numeric path parameter, writing a 400 when it is malformed
func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		respondErrorCode(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+param, nil)
		return 0, false
	}
	return uint(id), true
}

// queryUint reads an optional numeric query parameter; invalid values count as absent
func queryUint(c *gin.Context, key string) uint {
	v, err := strconv.ParseUint(c.Query(key), 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}

// queryBool reads an optional boolean query parameter
func queryBool(c *gin.Context, key string) *bool {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates
func parseDate(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, raw, time.Local)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// parseOptionalDate parses raw when set, recording a field error otherwise
func parseOptionalDate(raw *string, field string, fields map[string]string) *time.Time {
	if raw == nil || *raw == "" {
		return nil
	}
	t, err := parseDate(*raw)
	if err != nil {
		fields[field] = "must be a date (YYYY-MM-DD)"
		return nil
	}
	return &t
}

// queryDate reads an optional date query parameter
func queryDate(c *gin.Context, key string, fields map[string]string) *time.Time {
	raw := c.Query(key)
	return parseOptionalDate(&raw, key, fields)
}

func respondFieldErrors(c *gin.Context, fields map[string]string) bool {
	if len(fields) == 0 {
		return false
	}
	respondErrorCode(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid request data", fields)
	return true
}
