//go:build linux && !android

package service

import "github.com/CZERTAINLY/osal/internal/model"

const defaultBackend = model.BackendSystemctl
