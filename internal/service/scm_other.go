//go:build !windows

package service

import (
	"fmt"

	"github.com/CZERTAINLY/osal/internal/model"
)

func connectSCM() (scmManager, error) {
	return nil, fmt.Errorf("service control manager: %w", model.ErrNotSupported)
}
