package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/YuminosukeSato/labelembed/pkg/errors"
)

// SaveModel はモデルをzstd圧縮したgob形式でファイルに保存する
//
// パラメータ:
//   - model: 保存するモデル（gobでエンコード可能な構造体のポインタ）
//   - filename: 保存先のファイルパス
//
// 使用例:
//
//	err := model.SaveModel(env, "embedder.bin")
func SaveModel(model interface{}, filename string) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "failed to close file")
		}
	}()

	return SaveModelToWriter(model, file)
}

// LoadModel はファイルからモデルを読み込む
//
// パラメータ:
//   - model: 読み込み先のモデル（ポインタ）
//   - filename: 読み込み元のファイルパス
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter はモデルをzstdストリームとしてio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return errors.Wrap(err, "failed to create zstd writer")
	}
	if err := gob.NewEncoder(zw).Encode(model); err != nil {
		_ = zw.Close()
		return errors.Wrap(err, "failed to encode model")
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "failed to flush zstd stream")
	}
	return nil
}

// LoadModelFromReader はio.Readerからzstd圧縮されたモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "failed to create zstd reader")
	}
	defer zr.Close()

	if err := gob.NewDecoder(zr).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
