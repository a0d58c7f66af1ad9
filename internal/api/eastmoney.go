// Package api 封装东方财富行情接口：A 股/港股全市场快照与个股日 K 历史，含请求节流、重试与 trace 日志。
package api

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/xxinine/vi-tools/internal/model"
	"github.com/xxinine/vi-tools/internal/trace"
)

// 环境变量名（API 节流，可选覆盖）
const (
	envAPIDelayMS  = "VITOOLS_API_DELAY_MS"
	envAPIJitterMS = "VITOOLS_API_JITTER_MS"
)

// 东方财富接口地址
const (
	EastMoneyListURL  = "https://82.push2.eastmoney.com/api/qt/clist/get"
	EastMoneyKLineURL = "https://push2his.eastmoney.com/api/qt/stock/kline/get"
)

// 列表接口市场筛选：A 股为沪深主板+创业板+科创板，港股为主板+创业板
const (
	fsAShare  = "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23"
	fsHKShare = "m:128+t:3,m:128+t:4,m:128+t:1,m:128+t:2"
)

// 列表接口字段：f2 最新价 f3 涨跌幅(%) f12 代码 f14 名称 f20 总市值
const listFields = "f2,f3,f12,f14,f20"

// 历史接口 fields2：f51 日期 f52 开 f53 收 f54 高 f55 低 f56 量 f57 额 f58 振幅 f59 涨跌幅 f60 涨跌额 f61 换手
const (
	klineFields1 = "f1,f2,f3,f4,f5,f6"
	klineFields2 = "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61"
	klineDaily   = "101" // klt 日线
	klineQfq     = "1"   // fqt 前复权
)

// kline 逗号串里各字段的下标
const (
	klineIdxDate   = 0
	klineIdxClose  = 2
	klineIdxHigh   = 3
	klineIdxLow    = 4
	klineIdxChange = 9
	klineMinParts  = 10
)

// 分页
const listPageSize = 500

// 请求超时与重试
const (
	defaultHTTPTimeout = 5 * time.Second
	maxRetries         = 3
	retryDelay         = 500 * time.Millisecond
	retryDelay429      = 5 * time.Second
)

// 防封：请求间隔与抖动
const (
	maxRespLogLen        = 1200
	defaultRequestGap    = 200 * time.Millisecond
	defaultRequestJitter = 150
)

// 请求头（模拟浏览器）
const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	referer        = "https://quote.eastmoney.com/"
	acceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"
)

const dateLayout = "20060102"

var (
	requestGap    = defaultRequestGap
	requestJitter = defaultRequestJitter
	lastReqTime   time.Time
	lastReqMu     sync.Mutex
)

func init() {
	if s := os.Getenv(envAPIDelayMS); s != "" {
		if ms, err := strconv.Atoi(s); err == nil && ms > 0 {
			requestGap = time.Duration(ms) * time.Millisecond
		}
	}
	if s := os.Getenv(envAPIJitterMS); s != "" {
		if ms, err := strconv.Atoi(s); err == nil && ms >= 0 {
			requestJitter = ms
		}
	}
}

type Client struct {
	HTTPClient *http.Client
}

// NewClient 创建客户端；proxy 非空时走 HTTP 代理。
func NewClient(proxy string) *Client {
	transport := &http.Transport{}
	if proxy != "" {
		if u, err := url.Parse(proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &Client{HTTPClient: &http.Client{Timeout: defaultHTTPTimeout, Transport: transport}}
}

func paceRequest(ctx context.Context) {
	lastReqMu.Lock()
	elapsed := time.Since(lastReqTime)
	lastReqMu.Unlock()
	d := requestGap - elapsed
	if requestJitter > 0 {
		d += time.Duration(rand.Intn(requestJitter+1)) * time.Millisecond
	}
	if d > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
		}
	}
	lastReqMu.Lock()
	lastReqTime = time.Now()
	lastReqMu.Unlock()
}

// getWithRetry 发 GET 并读完 body，429 时退避更久。
func (c *Client) getWithRetry(ctx context.Context, rawURL string) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("api client is nil")
	}
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	var lastErr error
	lastStatus := 0
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := retryDelay
			if lastStatus == http.StatusTooManyRequests {
				backoff = retryDelay429
				trace.Log(ctx, "api: 429 限流，等待 %s 后重试", backoff)
			} else {
				trace.Log(ctx, "api: retry %d/%d %s", attempt, maxRetries, rawURL)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		paceRequest(ctx)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			lastErr = err
			continue
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Referer", referer)
		req.Header.Set("Accept", "application/json, text/plain, */*")
		req.Header.Set("Accept-Language", acceptLanguage)
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastStatus = resp.StatusCode
			trace.Log(ctx, "api: resp status=%d len=%d body=%s", resp.StatusCode, len(body), truncateForLog(body))
			lastErr = fmt.Errorf("http %d", resp.StatusCode)
			continue
		}
		return body, nil
	}
	trace.Log(ctx, "api: getWithRetry fail url=%s err=%v", rawURL, lastErr)
	return nil, lastErr
}

func truncateForLog(b []byte) string {
	s := string(b)
	if len(b) > maxRespLogLen {
		s = s[:maxRespLogLen] + "..."
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r", " "), "\n", " ")
}

// GetSpot 拉取一个市场的全量快照，分页直至取完。
func (c *Client) GetSpot(ctx context.Context, market model.Market) ([]model.Quote, error) {
	var fs string
	switch market {
	case model.MarketA:
		fs = fsAShare
	case model.MarketHK:
		fs = fsHKShare
	default:
		return nil, fmt.Errorf("api: unsupported market %v", market)
	}
	var all []model.Quote
	page := 1
	for {
		u := fmt.Sprintf("%s?pn=%d&pz=%d&po=1&np=1&fltt=2&invt=2&fid=f12&fs=%s&fields=%s",
			EastMoneyListURL, page, listPageSize, fs, listFields)
		body, err := c.getWithRetry(ctx, u)
		if err != nil {
			return nil, err
		}
		total, count, err := parseSpotPage(body, &all)
		if err != nil {
			return nil, err
		}
		if count == 0 || count < listPageSize || total <= len(all) {
			break
		}
		page++
	}
	trace.Log(ctx, "api: GetSpot market=%s len=%d", market, len(all))
	return all, nil
}

// parseSpotPage 解析列表接口一页：data.total 与 data.diff（数组或 "0","1",... 键的对象均兼容）。
func parseSpotPage(body []byte, list *[]model.Quote) (total, count int, err error) {
	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return 0, 0, fmt.Errorf("api: no data in spot response")
	}
	total = int(data.Get("total").Int())
	diff := data.Get("diff")
	if !diff.Exists() {
		return total, 0, nil
	}
	start := len(*list)
	diff.ForEach(func(_, v gjson.Result) bool {
		code := strings.TrimSpace(v.Get("f12").String())
		if code == "" {
			return true
		}
		*list = append(*list, model.Quote{
			Code:      code,
			Name:      strings.TrimSpace(v.Get("f14").String()),
			Price:     v.Get("f2").Float(),
			ChangePct: v.Get("f3").Float(),
			MarketCap: v.Get("f20").Float(),
		})
		return true
	})
	return total, len(*list) - start, nil
}

// GetDailyKlines 拉取最近 days 个自然日的前复权日 K，按日期升序返回。
func (c *Client) GetDailyKlines(ctx context.Context, code string, days int) ([]model.HistoryBar, error) {
	if code == "" || days <= 0 {
		return nil, fmt.Errorf("api: invalid code or days")
	}
	end := time.Now()
	beg := end.AddDate(0, 0, -days)
	u := fmt.Sprintf("%s?secid=%s&klt=%s&fqt=%s&beg=%s&end=%s&fields1=%s&fields2=%s",
		EastMoneyKLineURL, SecID(code), klineDaily, klineQfq,
		beg.Format(dateLayout), end.Format(dateLayout), klineFields1, klineFields2)
	body, err := c.getWithRetry(ctx, u)
	if err != nil {
		return nil, err
	}
	return parseKlines(body, code)
}

func parseKlines(body []byte, code string) ([]model.HistoryBar, error) {
	klines := gjson.GetBytes(body, "data.klines")
	if !klines.Exists() || !klines.IsArray() {
		return nil, fmt.Errorf("api: no data.klines for %s", code)
	}
	arr := klines.Array()
	out := make([]model.HistoryBar, 0, len(arr))
	for _, v := range arr {
		s := strings.TrimSpace(v.String())
		if s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		if len(parts) < klineMinParts {
			continue
		}
		closeVal, _ := strconv.ParseFloat(parts[klineIdxClose], 64)
		highVal, _ := strconv.ParseFloat(parts[klineIdxHigh], 64)
		lowVal, _ := strconv.ParseFloat(parts[klineIdxLow], 64)
		changeVal, _ := strconv.ParseFloat(parts[klineIdxChange], 64)
		out = append(out, model.HistoryBar{
			Date:   parts[klineIdxDate],
			Close:  closeVal,
			Change: changeVal,
			High:   highVal,
			Low:    lowVal,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("api: no klines for %s", code)
	}
	return out, nil
}

// SecID 转为东方财富 secid：港股 116.00700，上海 1.600519，深圳 0.000001。
func SecID(code string) string {
	code = strings.TrimSpace(code)
	if model.Classify(code) == model.MarketHK {
		return "116." + code
	}
	if code != "" && (code[0] == '6' || code[0] == '5' || code[0] == '9') {
		return "1." + code
	}
	return "0." + code
}
