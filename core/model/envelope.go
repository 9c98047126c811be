package model

import (
	"github.com/YuminosukeSato/labelembed/pkg/errors"
)

// FormatVersion is written into every Envelope. Load rejects other versions.
const FormatVersion = "1"

// Envelope はシリアライズされたモデルのヘッダ
type Envelope struct {
	// ModelType はモデルの種類（JaccardEmbedder, LinearJaccardEmbedder）
	ModelType string

	// Version はフォーマットのバージョン（互換性チェック用）
	Version string

	// Features は学習時の特徴量列の名前
	Features []string

	// Labels は学習時のラベル列の名前
	Labels []string

	// IsFitted はモデルが学習済みかどうか
	IsFitted bool
}

// Validate はEnvelopeの妥当性を検証
func (e *Envelope) Validate() error {
	if e.ModelType == "" {
		return errors.NewValueError("Envelope.Validate", "model type is required")
	}
	if e.Version != FormatVersion {
		return errors.NewValueError("Envelope.Validate", "unsupported format version "+e.Version)
	}
	if !e.IsFitted {
		return errors.NewNotFittedError(e.ModelType, "Load")
	}
	return nil
}
