package handlers

import (
	stderrors "errors"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/turtacn/certgate/internal/application/dto"
	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/pkg/constants"
	"github.com/turtacn/certgate/pkg/errors"
	"github.com/turtacn/certgate/pkg/utils"
)

var bindingOnce sync.Once

// ConfigureBinding makes gin validate DTOs with the same tags and rules as utils.ValidateStruct.
func ConfigureBinding() {
	bindingOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.SetTagName("validate")
			utils.RegisterCustomValidations(v)
		}
	})
}

// bindJSON decodes the body into obj and writes a validation error when that fails.
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			dto.SendError(c, utils.ValidationError(verrs))
		} else {
			dto.SendError(c, errors.Validation("Invalid request body").WithCause(err))
		}
		return false
	}
	return true
}

// sendArtifact streams a resolved file as an attachment. Private keys are never cached.
func sendArtifact(c *gin.Context, art *models.Artifact) {
	if art.Private {
		h := c.Writer.Header()
		h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
		h.Set(constants.HeaderSecurityWarning, "PRIVATE-KEY-DOWNLOAD")
	}
	c.FileAttachment(art.Path, art.Filename)
}
