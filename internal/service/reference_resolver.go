package service

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/consign-next/internal/constants"
	"github.com/consign-next/internal/logger"
	"github.com/consign-next/internal/models"
)

const (
	maxReferenceCodeLength = 20
	codeNameSeparator      = " - "
)

// ReferenceStore 解析器依赖的最小存储能力
type ReferenceStore interface {
	GetByID(kind string, id uint) (*models.Reference, error)
	FindActiveByName(kind, name string) (*models.Reference, error)
	FindActiveByCode(kind, code string) (*models.Reference, error)
	FindByCode(kind, code string) (*models.Reference, error)
	CreateIfAbsent(kind string, ref models.Reference) (bool, error)
}

// Resolution 解析结果：命中已有记录或新建记录
type Resolution struct {
	Entity  models.Reference `json:"entity"`
	Created bool             `json:"created"`
}

func found(ref *models.Reference) Resolution {
	return Resolution{Entity: *ref}
}

// ResolveReference 将松散的标识（ID、名称、编码或 "编码 - 名称"）解析为基础资料记录，
// 未命中时创建。只有数据自相矛盾时才返回 ResolutionError，"找不到" 永远不是错误。
//
// 顺序（先命中者胜）：
//  1. 主键
//  2. 启用记录的名称（忽略大小写）
//  3. 启用记录的编码（忽略大小写）
//  4. "CODE - Name" 拆分匹配；编码被不同名称占用时按完整标识查名称
//  5. 由标识派生规范化编码，已存在则返回，否则新建
func ResolveReference(store ReferenceStore, kind, identifier string) (Resolution, error) {
	raw := strings.TrimSpace(identifier)
	if raw == "" {
		return Resolution{}, invalid(kind, "is required")
	}

	if id, err := strconv.ParseUint(raw, 10, 64); err == nil && id > 0 {
		ref, err := store.GetByID(kind, uint(id))
		if err != nil {
			return Resolution{}, err
		}
		if ref != nil {
			return found(ref), nil
		}
	}

	ref, err := store.FindActiveByName(kind, raw)
	if err != nil {
		return Resolution{}, err
	}
	if ref != nil {
		return found(ref), nil
	}

	ref, err = store.FindActiveByCode(kind, raw)
	if err != nil {
		return Resolution{}, err
	}
	if ref != nil {
		return found(ref), nil
	}

	if codePart, namePart, ok := splitCodeName(raw); ok {
		code := normalizeReferenceCode(codePart)
		if code != "" {
			owner, err := store.FindByCode(kind, code)
			if err != nil {
				return Resolution{}, err
			}
			if owner == nil {
				return createReference(store, kind, code, namePart)
			}
			if strings.EqualFold(strings.TrimSpace(owner.Name), namePart) {
				return found(owner), nil
			}

			// 编码已被其他名称占用
			byName, err := store.FindActiveByName(kind, raw)
			if err != nil {
				return Resolution{}, err
			}
			if byName != nil {
				return found(byName), nil
			}
			if derived := normalizeReferenceCode(raw); strings.EqualFold(derived, owner.Code) {
				return Resolution{}, &ResolutionError{Kind: kind, Identifier: raw, Code: owner.Code}
			}
		}
	}

	derived := normalizeReferenceCode(raw)
	if derived == "" {
		return Resolution{}, invalid(kind, "must contain letters or digits")
	}
	owner, err := store.FindByCode(kind, derived)
	if err != nil {
		return Resolution{}, err
	}
	if owner != nil {
		return found(owner), nil
	}
	return createReference(store, kind, derived, raw)
}

func createReference(store ReferenceStore, kind, code, name string) (Resolution, error) {
	entity := models.Reference{
		Code:   code,
		Name:   name,
		Status: constants.ReferenceStatusActive,
	}
	if kind == constants.ReferenceKindService {
		entity.PricingMode = constants.PricingModeWeight
	}
	inserted, err := store.CreateIfAbsent(kind, entity)
	if err != nil {
		return Resolution{}, err
	}
	ref, err := store.FindByCode(kind, code)
	if err != nil {
		return Resolution{}, err
	}
	if ref == nil {
		return Resolution{}, &ResolutionError{Kind: kind, Identifier: name, Code: code}
	}
	if inserted {
		logger.Infow("reference_created", "kind", kind, "id", ref.ID, "code", ref.Code, "name", ref.Name)
	}
	return Resolution{Entity: *ref, Created: inserted}, nil
}

func splitCodeName(raw string) (string, string, bool) {
	idx := strings.Index(raw, codeNameSeparator)
	if idx <= 0 {
		return "", "", false
	}
	code := strings.TrimSpace(raw[:idx])
	name := strings.TrimSpace(raw[idx+len(codeNameSeparator):])
	if code == "" || name == "" {
		return "", "", false
	}
	return code, name, true
}

// normalizeReferenceCode 大写，非字母数字连续段替换为 _，截断到最大长度
func normalizeReferenceCode(value string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToUpper(value) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	code := b.String()
	if len(code) > maxReferenceCodeLength {
		code = strings.TrimRight(code[:maxReferenceCodeLength], "_")
	}
	return code
}
