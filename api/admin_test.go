package api

import (
	"bytes"
	"net/http"
	"testing"

	"nullfake/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestAdminHandler_Login(t *testing.T) {
	app := newTestApp(t)

	w := app.do("POST", "/api/admin/login", map[string]string{"username": "admin", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do("POST", "/api/admin/login", map[string]string{"username": "root", "password": "admin123"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do("POST", "/api/admin/login", map[string]string{"username": "admin"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 未配置密码哈希时拒绝登录
	app.cfg.Admin.PasswordHash = ""
	w = app.do("POST", "/api/admin/login", map[string]string{"username": "admin", "password": ""}, nil)
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestAdminHandler_RequiresToken(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{"/api/admin/providers", "/api/admin/stats", "/api/admin/export/excel"} {
		w := app.do("GET", path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestAdminHandler_ProvidersAndStats(t *testing.T) {
	app := newTestApp(t)
	auth := app.login(t)

	w := app.do("POST", "/api/analysis/start", map[string]string{"product_url": "B000000001"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	app.drain(t)

	w = app.do("GET", "/api/admin/providers", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	var providers []ProviderStatus
	decode(t, w, &providers)
	require.Len(t, providers, 1)
	assert.Equal(t, "fake", providers[0].Name)
	assert.True(t, providers[0].Available)
	require.NotNil(t, providers[0].Stats)
	assert.Equal(t, int64(1), providers[0].Stats.Success)

	w = app.do("GET", "/api/admin/stats", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	var overview service.Overview
	decode(t, w, &overview)
	assert.Equal(t, int64(1), overview.TotalProducts)
	assert.Equal(t, 50.0, overview.AvgFakePercentage)
	assert.Equal(t, []service.GradeCount{{Grade: service.GradeD, Total: 1}}, overview.Grades)
}

func TestAdminHandler_Reanalyze(t *testing.T) {
	app := newTestApp(t)
	auth := app.login(t)

	w := app.do("POST", "/api/analysis/start", map[string]string{"product_url": "B000000001"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	app.drain(t)

	app.provider.scores = map[string]float64{"r1": 99, "r2": 99}
	w = app.do("POST", "/api/admin/reanalyze", service.ReanalyzeFilter{Grade: service.GradeD}, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out map[string]int
	decode(t, w, &out)
	assert.Equal(t, 1, out["queued"])
	app.drain(t)

	rec, err := app.records.GetByKey(t.Context(), "B000000001", "us")
	require.NoError(t, err)
	assert.Equal(t, service.GradeF, *rec.Grade)

	// 无请求体时不筛选
	w = app.do("POST", "/api/admin/reanalyze", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAdminHandler_ExportExcel(t *testing.T) {
	app := newTestApp(t)
	auth := app.login(t)

	w := app.do("POST", "/api/analysis/start", map[string]string{"product_url": "B000000001"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	app.drain(t)

	w = app.do("GET", "/api/admin/export/excel?status=completed", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "B000000001", rows[1][1])
}

func TestAdminHandler_TestEmailDisabled(t *testing.T) {
	app := newTestApp(t)
	auth := app.login(t)

	w := app.do("POST", "/api/admin/email/test", nil, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "邮件服务未启用")
}
