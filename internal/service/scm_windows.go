//go:build windows

package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"

	"github.com/CZERTAINLY/osal/internal/model"
)

// restart three times two minutes apart, forget failures after six hours
var recovery = []mgr.RecoveryAction{
	{Type: mgr.ServiceRestart, Delay: 120 * time.Second},
	{Type: mgr.ServiceRestart, Delay: 120 * time.Second},
	{Type: mgr.ServiceRestart, Delay: 120 * time.Second},
}

const recoveryReset = uint32(6 * time.Hour / time.Second)

type winManager struct {
	m *mgr.Mgr
}

func connectSCM() (scmManager, error) {
	m, err := mgr.Connect()
	if err != nil {
		return nil, err
	}
	return winManager{m: m}, nil
}

func (w winManager) Open(id string) (scmService, error) {
	s, err := w.m.OpenService(id)
	switch {
	case errors.Is(err, windows.ERROR_SERVICE_DOES_NOT_EXIST):
		return nil, fmt.Errorf("service %s: %w", id, model.ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("opening service %s: %v: %w", id, err, model.ErrFailure)
	}
	return winService{s: s}, nil
}

func (w winManager) Create(d model.ServiceDescriptor) (scmService, error) {
	if s, err := w.m.OpenService(d.ID); err == nil {
		_ = s.Close()
		return nil, fmt.Errorf("service %s: %w", d.ID, model.ErrExists)
	}
	cfg := mgr.Config{
		StartType:    mgr.StartAutomatic,
		DisplayName:  d.Name,
		Description:  d.Description,
		Dependencies: d.DependencyList(),
	}
	s, err := w.m.CreateService(d.ID, d.ExecutableOrID(), cfg, strings.Fields(d.Args)...)
	switch {
	case errors.Is(err, windows.ERROR_SERVICE_EXISTS):
		return nil, fmt.Errorf("service %s: %w", d.ID, model.ErrExists)
	case err != nil:
		return nil, fmt.Errorf("creating service %s: %v: %w", d.ID, err, model.ErrFailure)
	}
	if err := s.SetRecoveryActions(recovery, recoveryReset); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("setting recovery of %s: %v: %w", d.ID, err, model.ErrFailure)
	}
	return winService{s: s}, nil
}

func (w winManager) Disconnect() error {
	return w.m.Disconnect()
}

type winService struct {
	s *mgr.Service
}

func (w winService) Start(args ...string) error {
	err := w.s.Start(args...)
	if errors.Is(err, windows.ERROR_SERVICE_ALREADY_RUNNING) {
		return nil
	}
	return err
}

func (w winService) Stop() (scmStatus, error) {
	st, err := w.s.Control(svc.Stop)
	if errors.Is(err, windows.ERROR_SERVICE_NOT_ACTIVE) {
		return scmStatus{State: scmStopped}, nil
	}
	return convertStatus(st), err
}

func (w winService) Query() (scmStatus, error) {
	st, err := w.s.Query()
	return convertStatus(st), err
}

func (w winService) Delete() error {
	return w.s.Delete()
}

func (w winService) Close() error {
	return w.s.Close()
}

func convertStatus(st svc.Status) scmStatus {
	return scmStatus{
		State:    scmState(st.State),
		WaitHint: time.Duration(st.WaitHint) * time.Millisecond,
	}
}
