// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package web

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/oatpp/oatpp-sub002/errs"
	"github.com/oatpp/oatpp-sub002/internal/splitio"
	"github.com/oatpp/oatpp-sub002/stream"
)

const headerSectionStep = 512

// ReadHeaderSection 从 b 中窥视并提交一个完整的 HTTP/1.1 头部小节（请求行 + 头部 + 空行）
//
// maxBytes 是 spec 规定的头部上限 超出则返回 431 在找到终止符 "\r\n\r\n" 之前
// 不会提交任何字节 —— 调用方可以安全地在失败后直接关闭连接而不影响其它已读数据
func ReadHeaderSection(b *stream.Buffered, maxBytes int) ([]byte, error) {
	n := headerSectionStep
	for {
		capped := n
		if capped > maxBytes {
			capped = maxBytes
		}

		data, status, err := b.Peek(capped)
		if err != nil && err != stream.ErrTruncated {
			return nil, err
		}

		if idx := splitio.IndexCRLFCRLF(data); idx >= 0 {
			b.CommitReadOffset(idx + 4)
			return data[:idx+4], nil
		}

		switch status {
		case stream.StatusOK:
			if capped >= maxBytes {
				return nil, errs.NewHeaderTooLarge()
			}
			n += headerSectionStep
		case stream.StatusClosed:
			if len(data) == 0 {
				return nil, io.EOF
			}
			return nil, errs.NewParseError("connection closed mid-header", io.ErrUnexpectedEOF)
		case stream.StatusBrokenPipe:
			return nil, errs.ErrBrokenPipe
		default:
			return nil, errs.NewParseError("unexpected stream status while reading headers", nil)
		}
	}
}

// ParseRequestLine 解析 "METHOD SP PATH SP PROTOCOL" 一行 不含末尾 CRLF
func ParseRequestLine(line []byte) (method, path, protocol string, err error) {
	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) != 3 {
		return "", "", "", errs.NewParseError("malformed request line", nil)
	}
	method = string(parts[0])
	path = string(parts[1])
	protocol = string(parts[2])
	if method == "" || path == "" || !strings.HasPrefix(protocol, "HTTP/") {
		return "", "", "", errs.NewParseError("malformed request line", nil)
	}
	return method, path, protocol, nil
}

// splitHeaderLine 按第一个 ':' 拆分头部行 两侧的可选空白 (OWS) 被裁剪
func splitHeaderLine(line []byte) (name, value string, ok bool) {
	idx := bytes.IndexByte(line, ':')
	if idx <= 0 {
		return "", "", false
	}
	name = string(bytes.TrimSpace(line[:idx]))
	value = string(bytes.TrimSpace(line[idx+1:]))
	if name == "" {
		return "", "", false
	}
	return name, value, true
}

// ParseHeaderSection 解析由 ReadHeaderSection 提取的头部小节 返回请求行三元组与 Header
func ParseHeaderSection(section []byte) (method, path, protocol string, header Header, err error) {
	scanner := splitio.NewScanner(section)
	if !scanner.Scan() {
		return "", "", "", Header{}, errs.NewParseError("empty header section", nil)
	}
	requestLine := bytes.TrimRight(scanner.Bytes(), "\r\n")
	method, path, protocol, err = ParseRequestLine(requestLine)
	if err != nil {
		return "", "", "", Header{}, err
	}

	header = NewHeader()
	for scanner.Scan() {
		line := bytes.TrimRight(scanner.Bytes(), "\r\n")
		if len(line) == 0 {
			continue // 头部小节末尾的空行（终止符）
		}
		name, value, ok := splitHeaderLine(line)
		if !ok {
			return "", "", "", Header{}, errs.NewParseError(fmt.Sprintf("malformed header line %q", line), nil)
		}
		if strings.EqualFold(name, "content-length") {
			if existing := header.Get(name); existing != "" && existing != value {
				return "", "", "", Header{}, errs.NewParseError("conflicting Content-Length values", nil)
			}
		}
		header.Add(name, value)
	}
	return method, path, protocol, header, nil
}

// BodyReader 根据 Content-Length/Transfer-Encoding 头为请求体选择正确的分帧读取器
//
// Transfer-Encoding 与 Content-Length 同时出现是走私攻击的经典载体 按 spec 的
// 决议统一在此拒绝：报 400 而不是猜测优先级
func BodyReader(b *stream.Buffered, header Header) (io.Reader, *chunkedReader, error) {
	te := header.Get("transfer-encoding")
	cl := header.Get("content-length")

	if te != "" {
		if cl != "" {
			return nil, nil, errs.NewParseError("Transfer-Encoding and Content-Length both present", nil)
		}
		codings := strings.Split(te, ",")
		last := strings.TrimSpace(codings[len(codings)-1])
		if !strings.EqualFold(last, "chunked") {
			return nil, nil, errs.NewNotImplemented("unsupported Transfer-Encoding")
		}
		cr := newChunkedReader(b)
		return cr, cr, nil
	}

	if cl == "" {
		return io.LimitReader(stream.ReaderAdapter{S: b}, 0), nil, nil
	}

	n, err := strconv.ParseInt(cl, 10, 64)
	if err != nil || n < 0 {
		return nil, nil, errs.NewParseError("invalid Content-Length", err)
	}
	return io.LimitReader(stream.ReaderAdapter{S: b}, n), nil, nil
}

// ReadRequest 读取并解析一个完整的 HTTP/1.1 请求（不含 body 的实际消费）
//
// maxHeaderBytes 对应 spec 的头部上限 返回的 Request.Body 按需分帧 调用方
// 负责读空它（或在确定要关闭连接时直接丢弃）才能开始下一条流水线请求
func ReadRequest(b *stream.Buffered, maxHeaderBytes int) (*Request, error) {
	section, err := ReadHeaderSection(b, maxHeaderBytes)
	if err != nil {
		return nil, err
	}

	method, path, protocol, header, err := ParseHeaderSection(section)
	if err != nil {
		return nil, err
	}

	body, _, err := BodyReader(b, header)
	if err != nil {
		return nil, err
	}

	return &Request{
		Method:   method,
		Path:     path,
		Protocol: protocol,
		Header:   header,
		Body:     body,
	}, nil
}

// DrainBody 读空并丢弃请求体 在处理函数没有完整消费 body 时由 http1 连接循环调用
// 以保证下一条流水线请求从正确的字节偏移开始
func DrainBody(body io.Reader) error {
	_, err := io.Copy(io.Discard, body)
	return err
}

// WriteResponse 将 Response 序列化到 w 顺序固定为：状态行、头部、空行、body
//
// Content-Length/Transfer-Encoding 由 Body.KnownSize() 推导 若调用方已经显式
// 设置了其中之一则尊重调用方的选择（用于 HEAD 响应等特殊场景）
func WriteResponse(w io.Writer, resp *Response) (int64, error) {
	var total int64

	reason := resp.Reason
	if reason == "" {
		reason = "OK"
	}
	statusLine := fmt.Sprintf("HTTP/1.1 %d %s\r\n", resp.StatusCode, reason)
	n, err := io.WriteString(w, statusLine)
	total += int64(n)
	if err != nil {
		return total, err
	}

	header := resp.Header
	hasCL := header.Has("content-length")
	hasTE := header.Has("transfer-encoding")

	if resp.Body != nil && header.Get("content-type") == "" && resp.Body.ContentType() != "" {
		header.Set("Content-Type", resp.Body.ContentType())
	}

	var chunked bool
	if !hasCL && !hasTE {
		if resp.Body == nil {
			header.Set("Content-Length", "0")
		} else if size, known := resp.Body.KnownSize(); known {
			header.Set("Content-Length", strconv.FormatInt(size, 10))
		} else {
			header.Set("Transfer-Encoding", "chunked")
			chunked = true
		}
	} else if hasTE && strings.EqualFold(header.Get("transfer-encoding"), "chunked") {
		chunked = true
	}

	var headerErr error
	header.Range(func(name, value string) {
		if headerErr != nil {
			return
		}
		hn, herr := io.WriteString(w, canonicalHeaderName(name)+": "+value+"\r\n")
		total += int64(hn)
		headerErr = herr
	})
	if headerErr != nil {
		return total, headerErr
	}

	n, err = io.WriteString(w, "\r\n")
	total += int64(n)
	if err != nil {
		return total, err
	}

	if resp.Body == nil {
		return total, nil
	}

	if chunked {
		written, err := writeChunkedBody(w, resp.Body)
		total += written
		return total, err
	}

	written, err := resp.Body.WriteTo(w)
	total += written
	return total, err
}

func writeChunkedBody(w io.Writer, body BodyProducer) (int64, error) {
	var total int64
	buf := &bytes.Buffer{}
	if _, err := body.WriteTo(buf); err != nil {
		return total, err
	}

	const chunkSize = 4096
	data := buf.Bytes()
	for len(data) > 0 {
		piece := data
		if len(piece) > chunkSize {
			piece = piece[:chunkSize]
		}
		n, err := fmt.Fprintf(w, "%x\r\n", len(piece))
		total += int64(n)
		if err != nil {
			return total, err
		}
		wn, err := w.Write(piece)
		total += int64(wn)
		if err != nil {
			return total, err
		}
		n, err = io.WriteString(w, "\r\n")
		total += int64(n)
		if err != nil {
			return total, err
		}
		data = data[len(piece):]
	}
	n, err := io.WriteString(w, "0\r\n\r\n")
	total += int64(n)
	return total, err
}

// canonicalHeaderName 把小写 header 名恢复为 Train-Case 仅影响线上呈现 不影响匹配语义
func canonicalHeaderName(name string) string {
	parts := strings.Split(name, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "-")
}
