//go:build !linux && !android && !windows

package service

import "github.com/CZERTAINLY/osal/internal/model"

const defaultBackend = model.BackendNone
