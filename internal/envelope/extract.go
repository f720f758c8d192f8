// Package envelope 从邮件信封推导反规范化搜索字段，并负责解析原始邮件头。
package envelope

import (
	"strings"

	"mailsearch/backend/internal/domain"
)

// ExtractSearchIndex 根据信封生成搜索字段
//
// 对 from/to/cc 每个地址列表：本地部分和域名都存在时输出小写的 local@domain，
// 显示名称非空时输出小写名称并以单个空格连接。列表为空的字段被省略。
// 主题优先使用 decodedSubject，为空时退回信封中的原始主题。
//
// 参数:
//   - env: 邮件信封，可以为 nil
//   - decodedSubject: 已解码的主题，可以为空
//
// 返回值:
//   - *domain.SearchIndex: 搜索字段，永不为 nil
func ExtractSearchIndex(env *domain.Envelope, decodedSubject string) *domain.SearchIndex {
	index := &domain.SearchIndex{}

	subject := decodedSubject
	if env != nil {
		index.From, index.FromName = collect(env.From)
		index.To, index.ToName = collect(env.To)
		index.Cc, index.CcName = collect(env.Cc)
		if subject == "" {
			subject = env.Subject
		}
	}
	index.Subject = normalize(subject)

	return index
}

// collect 收集地址列表中的地址与显示名称
func collect(list []domain.Address) ([]string, string) {
	var addresses []string
	var names []string

	for _, addr := range list {
		local := normalize(addr.Mailbox)
		host := normalize(addr.Host)
		if local != "" && host != "" {
			addresses = append(addresses, local+"@"+host)
		}
		if name := normalize(addr.Name); name != "" {
			names = append(names, name)
		}
	}

	return addresses, strings.Join(names, " ")
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
